package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/urlfrontier/internal/config"
	"github.com/rzbill/urlfrontier/internal/metrics"
	"github.com/rzbill/urlfrontier/internal/runtime"
	httpserver "github.com/rzbill/urlfrontier/internal/server/http"
	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Options control one server run.
type Options struct {
	// DataDir overrides the store location; the store lives in its "store"
	// subdirectory. Empty keeps the configured path.
	DataDir       string
	HTTPAddr      string
	Purge         bool
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the frontier server and blocks until ctx is cancelled. A
// failed recovery is returned before serving begins.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.DataDir != "" {
		cfg.Store.Path = filepath.Join(opts.DataDir, "store")
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}
	if opts.Purge {
		cfg.Store.Purge = true
	}

	logCfg := &logpkg.Config{
		Level:  getenvDefault("URLFRONTIER_LOG_LEVEL", "info"),
		Format: getenvDefault("URLFRONTIER_LOG_FORMAT", "text"),
	}
	logger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Pebble logs through the stdlib; capture them.
	logpkg.RedirectStdLog(logger)

	m := metrics.New()
	rt, err := runtime.Open(runtime.Options{
		Config:        cfg,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Logger:        logger,
		Metrics:       m,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	m.RegisterQueueGauge(func() float64 { return float64(rt.Frontier().NumQueues()) })

	logger.Info("starting URL frontier server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("store", cfg.Store.Path),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	hsrv := httpserver.New(rt, m, logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.WithError(err).Error("http server failed")
		}
	}()

	<-sctx.Done()
	// drain the server before the store closes underneath it
	hsrv.Close()
	wg.Wait()
	return nil
}
