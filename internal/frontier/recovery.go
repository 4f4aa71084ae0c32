package frontier

import (
	"fmt"

	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
)

// recoverQueues rebuilds the registry and per-queue counters from the
// store. The URL family is authoritative for the counts; the SCHED family
// is cross-checked against it, and any mismatch aborts startup.
func (f *Frontier) recoverQueues() error {
	// Pass 1: count scheduling entries per queue, registering queues in
	// store order as they appear.
	schedCounts := make(map[QueueWithinCrawl]int64)
	it, err := f.db.NewIter(pebblestore.KeyspaceSched, nil)
	if err != nil {
		return err
	}
	for ok := it.First(); ok; ok = it.Next() {
		q, _, _, perr := parseSchedulingKey(it.Key())
		if perr != nil {
			_ = it.Close()
			return fmt.Errorf("recovery: %w", perr)
		}
		f.queues.GetOrInsert(q)
		schedCounts[q]++
	}
	if err := it.Close(); err != nil {
		return err
	}

	// Pass 2: walk the existence family. An empty value is a completed
	// URL; a non-empty value is a scheduled one. On each queue boundary
	// the scheduled count must match pass 1.
	checked := make(map[QueueWithinCrawl]bool)
	var (
		current          QueueWithinCrawl
		haveCurrent      bool
		active, completed int64
	)
	flush := func() error {
		md, _ := f.queues.GetOrInsert(current)
		md.SetCounts(active, completed)
		if schedCounts[current] != active {
			return fmt.Errorf("recovery: queue %s has %d scheduled entries but %d active URLs",
				current, schedCounts[current], active)
		}
		checked[current] = true
		return nil
	}

	it, err = f.db.NewIter(pebblestore.KeyspaceURL, nil)
	if err != nil {
		return err
	}
	for ok := it.First(); ok; ok = it.Next() {
		q, perr := parseQueue(it.Key())
		if perr != nil {
			_ = it.Close()
			return fmt.Errorf("recovery: %w", perr)
		}
		if !haveCurrent {
			current, haveCurrent = q, true
		} else if q != current {
			if err := flush(); err != nil {
				_ = it.Close()
				return err
			}
			current = q
			active, completed = 0, 0
		}
		if len(it.Value()) == 0 {
			completed++
		} else {
			active++
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	if haveCurrent {
		if err := flush(); err != nil {
			return err
		}
	}

	// A queue with scheduling entries but no existence entries is corrupt.
	for q, n := range schedCounts {
		if n > 0 && !checked[q] {
			return fmt.Errorf("recovery: queue %s has %d scheduled entries but no URL entries", q, n)
		}
	}
	return nil
}
