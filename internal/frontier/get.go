package frontier

import (
	"context"
	"math"

	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// GetURLs streams dispatchable URLs into out, rotating fairly across
// queues. The out channel is closed on return. Every emitted URL is held
// for the requested delay so concurrent and subsequent calls skip it.
func (f *Frontier) GetURLs(ctx context.Context, params GetParams, out chan<- URLInfo) error {
	defer close(out)

	maxQueues := params.MaxQueues
	if maxQueues <= 0 {
		maxQueues = math.MaxInt
	}
	maxURLsPerQueue := params.MaxURLsPerQueue
	if maxURLsPerQueue <= 0 {
		maxURLsPerQueue = math.MaxInt
	}
	delay := params.DelayRequestable
	if delay <= 0 {
		delay = f.defaultDelay
	}

	now := f.now()

	// A named queue bypasses the rotation and leaves the cursor alone.
	if params.Key != "" {
		q := QueueWithinCrawl{CrawlID: NormalizeCrawlID(params.CrawlID), Queue: params.Key}
		md := f.queues.Get(q)
		if md == nil {
			return nil
		}
		sent, err := f.sendURLsForQueue(ctx, q, md, maxURLsPerQueue, delay, now, out)
		f.logger.Debug("dispatched one queue",
			logpkg.Str("queue", q.String()), logpkg.Int("sent", sent))
		return err
	}

	// Round-robin: visit each queue at most once, starting at the cursor.
	// The cursor advances for every visited queue; only queues that
	// emitted at least one URL count toward maxQueues.
	numQueuesSent := 0
	totalSent := 0
	for visited := f.queues.Len(); visited > 0; visited-- {
		if numQueuesSent >= maxQueues {
			break
		}
		q, ok := f.queues.NextKey()
		if !ok {
			break
		}
		f.queues.MoveToNext()
		md := f.queues.Get(q)
		if md == nil {
			continue
		}
		sent, err := f.sendURLsForQueue(ctx, q, md, maxURLsPerQueue, delay, now, out)
		totalSent += sent
		if sent > 0 {
			numQueuesSent++
		}
		if err != nil {
			return err
		}
	}
	f.logger.Debug("dispatched",
		logpkg.Int("urls", totalSent), logpkg.Int("queues", numQueuesSent))
	return nil
}

// sendURLsForQueue scans one queue's scheduling entries in fetch-time
// order and emits the dispatchable ones, claiming each for delay seconds.
func (f *Frontier) sendURLsForQueue(ctx context.Context, q QueueWithinCrawl, md *QueueMetadata, maxURLs int, delay, now int64, out chan<- URLInfo) (int, error) {
	it, err := f.db.NewIter(pebblestore.KeyspaceSched, queuePrefix(q))
	if err != nil {
		f.logger.WithError(err).Error("store iterator failed", logpkg.Str("queue", q.String()))
		return 0, err
	}
	defer it.Close()

	sent := 0
	for ok := it.First(); ok && sent < maxURLs; ok = it.Next() {
		entryQueue, nextFetchDate, url, perr := parseSchedulingKey(it.Key())
		if perr != nil {
			f.logger.WithError(perr).Error("skipping malformed scheduling key")
			continue
		}
		// ran past this queue's entries?
		if entryQueue != q {
			return sent, nil
		}
		// entries are date-ordered, so the first future one ends the queue
		if nextFetchDate > now {
			return sent, nil
		}

		info, okDec := DecodeURLInfo(it.Value())
		if !okDec {
			f.logger.Error("skipping undecodable record", logpkg.Str("url", url))
			continue
		}

		// claim before emitting; check and set are one atomic step
		if !md.AcquireHold(url, now, now+delay) {
			continue
		}

		select {
		case out <- info:
		case <-ctx.Done():
			// client went away; the hold simply decays
			return sent, ctx.Err()
		}
		sent++
	}
	return sent, nil
}
