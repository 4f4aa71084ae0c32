package frontier

import (
	"sync"
	"time"

	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// defaultDelayRequestable is the hold duration applied when a get call does
// not specify one.
const defaultDelayRequestable = 30

// Options configures a Frontier.
type Options struct {
	// DefaultDelayRequestable is the hold duration in seconds applied when
	// GetParams carries none. 0 selects the built-in default of 30.
	DefaultDelayRequestable int64
	// Logger receives frontier events. A discard-free default is built when nil.
	Logger logpkg.Logger
}

// Frontier is the per-host URL scheduler: it owns the durable two-family
// index, the in-memory queue registry, and the set of queues being torn
// down.
type Frontier struct {
	db     *pebblestore.DB
	queues *Registry
	logger logpkg.Logger

	// deleting holds QueueWithinCrawl keys of queues being torn down;
	// writes happen inside the delete operations, reads are lock-free.
	deleting sync.Map

	defaultDelay int64

	// now is swapped out in tests.
	now func() int64
}

// Open builds a Frontier over an opened store and recovers the in-memory
// queue state from it. A recovery inconsistency is fatal: the error must
// abort startup.
func Open(db *pebblestore.DB, opts Options) (*Frontier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	delay := opts.DefaultDelayRequestable
	if delay <= 0 {
		delay = defaultDelayRequestable
	}
	f := &Frontier{
		db:           db,
		queues:       NewRegistry(),
		logger:       logger.WithComponent("frontier"),
		defaultDelay: delay,
		now:          func() int64 { return time.Now().Unix() },
	}

	start := time.Now()
	if err := f.recoverQueues(); err != nil {
		return nil, err
	}
	f.logger.Info("queues recovered",
		logpkg.Int("queues", f.queues.Len()),
		logpkg.Duration("elapsed", time.Since(start)),
	)
	return f, nil
}

// NumQueues returns the number of registered queues.
func (f *Frontier) NumQueues() int { return f.queues.Len() }

func (f *Frontier) isDeleting(q QueueWithinCrawl) bool {
	_, ok := f.deleting.Load(q)
	return ok
}
