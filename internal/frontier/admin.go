package frontier

import (
	"bytes"

	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// ListQueues returns up to max queue keys within the crawl whose head
// scheduling entry is due. 0 means no cap.
func (f *Frontier) ListQueues(crawlID string, max int) ([]string, error) {
	crawlID = NormalizeCrawlID(crawlID)
	now := f.now()

	var keys []string
	for _, q := range f.queues.Keys() {
		if q.CrawlID != crawlID {
			continue
		}
		if max > 0 && len(keys) >= max {
			break
		}
		due, err := f.headIsDue(q, now)
		if err != nil {
			return nil, err
		}
		if due {
			keys = append(keys, q.Queue)
		}
	}
	return keys, nil
}

// headIsDue reports whether the queue's earliest scheduling entry is due.
func (f *Frontier) headIsDue(q QueueWithinCrawl, now int64) (bool, error) {
	it, err := f.db.NewIter(pebblestore.KeyspaceSched, queuePrefix(q))
	if err != nil {
		return false, err
	}
	defer it.Close()
	if !it.First() {
		return false, nil
	}
	entryQueue, nextFetchDate, _, perr := parseSchedulingKey(it.Key())
	if perr != nil || entryQueue != q {
		return false, perr
	}
	return nextFetchDate <= now, nil
}

// GetStats aggregates counters for one queue (when key is set) or for
// every queue of the crawl. The ACTIVE count is derived from the
// scheduling family; COMPLETED comes from queue metadata.
func (f *Frontier) GetStats(crawlID, key string) (Stats, error) {
	crawlID = NormalizeCrawlID(crawlID)
	now := f.now()

	var targets []QueueWithinCrawl
	if key != "" {
		targets = []QueueWithinCrawl{{CrawlID: crawlID, Queue: key}}
	} else {
		for _, q := range f.queues.Keys() {
			if q.CrawlID == crawlID {
				targets = append(targets, q)
			}
		}
	}

	stats := Stats{Counts: map[string]int64{StatusActive: 0, StatusCompleted: 0}}
	for _, q := range targets {
		md := f.queues.Get(q)
		if md == nil {
			continue
		}
		scheduled, err := f.countScheduled(q)
		if err != nil {
			return Stats{}, err
		}
		stats.NumberOfQueues++
		stats.Size += md.Size()
		stats.InProcess += md.InProcess(now)
		stats.Counts[StatusActive] += scheduled
		stats.Counts[StatusCompleted] += md.CountCompleted()
	}
	if s := f.db.StatsString(); s != "" {
		f.logger.Info("store stats", logpkg.Str("pebble", s))
	}
	return stats, nil
}

func (f *Frontier) countScheduled(q QueueWithinCrawl) (int64, error) {
	it, err := f.db.NewIter(pebblestore.KeyspaceSched, queuePrefix(q))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n int64
	for ok := it.First(); ok; ok = it.Next() {
		entryQueue, _, _, perr := parseSchedulingKey(it.Key())
		if perr != nil || entryQueue != q {
			break
		}
		n++
	}
	return n, nil
}

// DeleteQueue removes every entry of the queue from both families and
// drops it from the registry, returning the number of URLs removed.
// Deleting an unknown or already-deleting queue returns 0.
func (f *Frontier) DeleteQueue(crawlID, key string) (int64, error) {
	q := QueueWithinCrawl{CrawlID: NormalizeCrawlID(crawlID), Queue: key}

	if _, already := f.deleting.LoadOrStore(q, struct{}{}); already {
		return 0, nil
	}
	defer f.deleting.Delete(q)

	if f.queues.Get(q) == nil {
		return 0, nil
	}

	start := queuePrefix(q)
	end := f.nextQueuePrefix(q)
	if err := f.deleteRanges(start, end); err != nil {
		f.logger.WithError(err).Error("range delete failed", logpkg.Str("queue", q.String()))
		return 0, err
	}

	md := f.queues.Remove(q)
	if md == nil {
		return 0, nil
	}
	removed := md.CountActive() + md.CountCompleted()
	f.logger.Info("queue deleted",
		logpkg.Str("queue", q.String()), logpkg.Int64("urls", removed))
	return removed, nil
}

// DeleteCrawl removes every queue of the crawl, returning the total number
// of URLs removed.
func (f *Frontier) DeleteCrawl(crawlID string) (int64, error) {
	crawlID = NormalizeCrawlID(crawlID)

	sorted := f.queues.SortedKeys()
	var toDelete []QueueWithinCrawl
	var end []byte
	for _, q := range sorted {
		if q.CrawlID == crawlID {
			toDelete = append(toDelete, q)
		} else if len(toDelete) > 0 {
			end = crawlPrefix(q.CrawlID)
			break
		}
	}
	if len(toDelete) == 0 {
		return 0, nil
	}

	// concurrent puts against these queues are dropped for the duration
	marked := make([]QueueWithinCrawl, 0, len(toDelete))
	for _, q := range toDelete {
		if _, already := f.deleting.LoadOrStore(q, struct{}{}); !already {
			marked = append(marked, q)
		}
	}
	defer func() {
		for _, q := range marked {
			f.deleting.Delete(q)
		}
	}()

	if err := f.deleteRanges(crawlPrefix(crawlID), end); err != nil {
		f.logger.WithError(err).Error("range delete failed", logpkg.Str("crawl", crawlID))
		return 0, err
	}

	var total int64
	for _, q := range marked {
		if md := f.queues.Remove(q); md != nil {
			total += md.CountActive() + md.CountCompleted()
		}
	}
	f.logger.Info("crawl deleted",
		logpkg.Str("crawl", crawlID), logpkg.Int64("urls", total))
	return total, nil
}

// nextQueuePrefix finds the prefix of the queue that follows q in store
// order, or nil when q is the last one (the range then runs to the end of
// each family).
func (f *Frontier) nextQueuePrefix(q QueueWithinCrawl) []byte {
	target := queuePrefix(q)
	var next []byte
	for _, cand := range f.queues.SortedKeys() {
		p := queuePrefix(cand)
		if bytes.Compare(p, target) > 0 {
			next = p
			break
		}
	}
	return next
}

func (f *Frontier) deleteRanges(start, end []byte) error {
	if err := f.db.DeleteRange(pebblestore.KeyspaceSched, start, end); err != nil {
		return err
	}
	return f.db.DeleteRange(pebblestore.KeyspaceURL, start, end)
}
