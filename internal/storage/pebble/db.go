package pebblestore

import (
	"errors"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = pebble.ErrNotFound

// Keyspace identifies one of the two logical column families of the
// frontier store. Pebble has no column family concept, so each keyspace is
// mapped to a fixed physical prefix; keys within a keyspace keep the exact
// byte layout of the interop surface.
type Keyspace byte

const (
	// KeyspaceURL holds one entry per known URL (existence keys).
	KeyspaceURL Keyspace = iota
	// KeyspaceSched holds the time-ordered scheduling entries.
	KeyspaceSched
)

var keyspacePrefixes = [...][]byte{
	KeyspaceURL:   []byte("u/"),
	KeyspaceSched: []byte("s/"),
}

func (k Keyspace) prefix() []byte { return keyspacePrefixes[k] }

// upperBound is the exclusive end of the keyspace: the prefix with its last
// byte incremented ('/'+1), past every possible key in the keyspace.
func (k Keyspace) upperBound() []byte {
	p := k.prefix()
	end := append([]byte(nil), p...)
	end[len(end)-1]++
	return end
}

func (k Keyspace) physical(key []byte) []byte {
	p := k.prefix()
	out := make([]byte, 0, len(p)+len(key))
	out = append(out, p...)
	out = append(out, key...)
	return out
}

// FsyncMode defines durability behavior for write operations.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each committed batch/write.
	FsyncModeAlways
	// FsyncModeInterval enables group-commit by allowing Pebble to coalesce
	// WAL syncs for operations within the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. This mode
	// trades durability latency for throughput.
	FsyncModeNever
)

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Purge deletes DataDir contents before opening.
	Purge bool
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// BloomFilters enables per-level bloom filters, keyed to the existence
	// lookups that dominate the put path.
	BloomFilters bool
	// MaxBackgroundJobs bounds compaction concurrency (0 = pebble default).
	MaxBackgroundJobs int
	// MaxSubcompactions folds into compaction concurrency; pebble does not
	// split the two knobs.
	MaxSubcompactions int
	// MaxBytesForLevelBase tunes LBase sizing (0 = pebble default).
	MaxBytesForLevelBase int64
	// Stats enables capture of pebble-internal metrics via StatsString.
	Stats bool
	// Metrics allows observing read/write/commit latencies and sizes. Optional.
	Metrics MetricsHook
}

// MetricsHook is a minimal hook surface for storage observations.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics is used when no metrics hook is provided.
type NoopMetrics struct{}

func (NoopMetrics) ObserveWrite(time.Duration, int)            {}
func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}

// DB wraps a Pebble database with the frontier's two keyspaces, an fsync
// policy, and basic helpers.
type DB struct {
	inner        *pebble.DB
	writeSync    bool
	collectStats bool
	metrics      MetricsHook
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	if opts.Purge {
		if err := os.RemoveAll(opts.DataDir); err != nil {
			return nil, err
		}
	}

	po := &pebble.Options{}

	switch opts.Fsync {
	case FsyncModeAlways:
		// Sync on each commit; WALMinSyncInterval left at default.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	case FsyncModeNever:
		// Neither set WALMinSyncInterval nor Sync on writes.
	default:
		// Default to small group-commit for a latency/throughput tradeoff.
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	if opts.BloomFilters {
		po.Levels = []pebble.LevelOptions{{FilterPolicy: bloom.FilterPolicy(10)}}
	}
	if jobs := max(opts.MaxBackgroundJobs, opts.MaxSubcompactions); jobs > 0 {
		po.MaxConcurrentCompactions = func() int { return jobs }
	}
	if opts.MaxBytesForLevelBase > 0 {
		po.LBaseMaxBytes = opts.MaxBytesForLevelBase
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	return &DB{
		inner:        inner,
		writeSync:    opts.Fsync != FsyncModeNever,
		collectStats: opts.Stats,
		metrics:      metrics,
	}, nil
}

// Close flushes and closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	if err := db.inner.Flush(); err != nil {
		_ = db.inner.Close()
		return err
	}
	return db.inner.Close()
}

func (db *DB) syncMode() pebble.WriteOptions {
	if db.writeSync {
		return *pebble.Sync
	}
	return *pebble.NoSync
}

// Set writes a key in the given keyspace, durable per the fsync policy.
func (db *DB) Set(ks Keyspace, key, value []byte) error {
	start := time.Now()
	wo := db.syncMode()
	err := db.inner.Set(ks.physical(key), value, &wo)
	db.metrics.ObserveWrite(time.Since(start), len(key)+len(value))
	return err
}

// Delete removes a key in the given keyspace.
func (db *DB) Delete(ks Keyspace, key []byte) error {
	start := time.Now()
	wo := db.syncMode()
	err := db.inner.Delete(ks.physical(key), &wo)
	db.metrics.ObserveWrite(time.Since(start), len(key))
	return err
}

// Get copies the value for the given key. Missing keys return ErrNotFound;
// an empty value round-trips as an empty, non-nil slice.
func (db *DB) Get(ks Keyspace, key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(ks.physical(key))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte{}, val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// DeleteRange removes [start, end) within the keyspace. A nil end deletes to
// the end of the keyspace.
func (db *DB) DeleteRange(ks Keyspace, start, end []byte) error {
	t0 := time.Now()
	lo := ks.physical(start)
	var hi []byte
	if end == nil {
		hi = ks.upperBound()
	} else {
		hi = ks.physical(end)
	}
	wo := db.syncMode()
	err := db.inner.DeleteRange(lo, hi, &wo)
	db.metrics.ObserveWrite(time.Since(t0), len(lo)+len(hi))
	return err
}

// Batch accumulates writes across keyspaces for a single atomic commit.
type Batch struct {
	inner *pebble.Batch
	ops   int
}

// NewBatch creates a new write batch.
func (db *DB) NewBatch() *Batch {
	return &Batch{inner: db.inner.NewBatch()}
}

// Set queues a write in the batch.
func (b *Batch) Set(ks Keyspace, key, value []byte) error {
	b.ops++
	return b.inner.Set(ks.physical(key), value, nil)
}

// Delete queues a deletion in the batch.
func (b *Batch) Delete(ks Keyspace, key []byte) error {
	b.ops++
	return b.inner.Delete(ks.physical(key), nil)
}

// Close releases the batch without committing.
func (b *Batch) Close() error { return b.inner.Close() }

// Commit applies the batch with the configured fsync policy.
func (db *DB) Commit(b *Batch) error {
	if b == nil || b.inner == nil {
		return errors.New("pebble: nil batch")
	}
	start := time.Now()
	size := b.inner.Len()

	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	err := b.inner.Commit(syncMode)
	db.metrics.ObserveBatchCommit(time.Since(start), b.ops, size)
	return err
}

// Iter walks one keyspace in key order, exposing keyspace-relative keys.
type Iter struct {
	inner *pebble.Iterator
	strip int
}

// NewIter creates a forward iterator over the keyspace, positioned before
// the first key with the given prefix (nil prefix = start of keyspace).
// The caller must Close it.
func (db *DB) NewIter(ks Keyspace, prefix []byte) (*Iter, error) {
	lo := ks.physical(prefix)
	it, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: lo,
		UpperBound: ks.upperBound(),
	})
	if err != nil {
		return nil, err
	}
	return &Iter{inner: it, strip: len(ks.prefix())}, nil
}

// First positions at the first entry; reports whether one exists.
func (it *Iter) First() bool { return it.inner.First() }

// Next advances; reports whether the iterator remains valid.
func (it *Iter) Next() bool { return it.inner.Next() }

// Key returns the keyspace-relative key. Valid until the next positioning call.
func (it *Iter) Key() []byte { return it.inner.Key()[it.strip:] }

// Value returns the current value. Valid until the next positioning call.
func (it *Iter) Value() []byte { return it.inner.Value() }

// Close releases the iterator.
func (it *Iter) Close() error { return it.inner.Close() }

// StatsString reports pebble-internal metrics when stats capture is enabled.
func (db *DB) StatsString() string {
	if !db.collectStats {
		return ""
	}
	return db.inner.Metrics().String()
}
