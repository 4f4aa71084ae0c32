package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/rzbill/urlfrontier/internal/config"
	"github.com/rzbill/urlfrontier/internal/frontier"
	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config        cfgpkg.Config
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Logger        logpkg.Logger
	Metrics       pebblestore.MetricsHook
}

// Runtime wires the store, config, and frontier for a single-node instance.
type Runtime struct {
	db       *pebblestore.DB
	frontier *frontier.Frontier
	config   cfgpkg.Config
}

// Open initializes the store and recovers the frontier. A recovery failure
// closes the store and is returned to the caller, which must abort startup.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:              opts.Config.Store.Path,
		Purge:                opts.Config.Store.Purge,
		Fsync:                opts.Fsync,
		FsyncInterval:        opts.FsyncInterval,
		BloomFilters:         opts.Config.Store.BloomFilters,
		MaxBackgroundJobs:    opts.Config.Store.MaxBackgroundJobs,
		MaxSubcompactions:    opts.Config.Store.MaxSubcompactions,
		MaxBytesForLevelBase: opts.Config.Store.MaxBytesForLevelBase,
		Stats:                opts.Config.Store.Stats,
		Metrics:              opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	fr, err := frontier.Open(db, frontier.Options{
		DefaultDelayRequestable: opts.Config.DefaultDelayRequestable,
		Logger:                  opts.Logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Runtime{db: db, frontier: fr, config: opts.Config}, nil
}

// Close flushes and closes the underlying store.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple store liveness check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("store not open")
	}
	it, err := r.db.NewIter(pebblestore.KeyspaceURL, nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Frontier returns the scheduling core.
func (r *Runtime) Frontier() *frontier.Frontier { return r.frontier }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
