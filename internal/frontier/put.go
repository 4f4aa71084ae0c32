package frontier

import (
	"context"
	"errors"
	"net/url"

	"github.com/PuerkitoBio/purell"
	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
	logpkg "github.com/rzbill/urlfrontier/pkg/log"
)

// PutURLs drains the item channel, applies each item, and emits an ack per
// acknowledged URL. The ack is a liveness signal only: store failures are
// logged and surface as a missing ack. The acks channel is closed when the
// input channel closes or ctx is cancelled.
func (f *Frontier) PutURLs(ctx context.Context, items <-chan URLItem, acks chan<- string) error {
	defer close(acks)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return nil
			}
			ackURL, ack := f.putItem(item)
			if !ack {
				continue
			}
			select {
			case acks <- ackURL:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// putItem applies one item and reports the URL to acknowledge. ack is
// false when the item is unidentifiable or a store read or write failed.
func (f *Frontier) putItem(item URLItem) (string, bool) {
	var (
		info          URLInfo
		nextFetchDate int64
		discovered    bool
	)
	switch {
	case item.Discovered != nil && item.Known != nil:
		f.logger.Warn("item with both discovered and known variants")
		return "", false
	case item.Discovered != nil:
		info = item.Discovered.Info
		nextFetchDate = f.now()
		discovered = true
	case item.Known != nil:
		info = item.Known.Info
		nextFetchDate = item.Known.RefetchableFromDate
	default:
		f.logger.Warn("item with neither discovered nor known variant")
		return "", false
	}

	rawURL := info.URL
	if rawURL == "" {
		f.logger.Warn("item without a URL")
		return "", false
	}

	crawlID := NormalizeCrawlID(info.CrawlID)
	key := info.Key

	// No queue key? Derive it from the URL host.
	if key == "" {
		f.logger.Debug("key missing", logpkg.Str("url", rawURL))
		key = provideMissingKey(rawURL)
		if key == "" {
			f.logger.Error("malformed URL", logpkg.Str("url", rawURL))
			return rawURL, true
		}
		// the stored record carries the derived key and normalized crawl id
		info.Key = key
		info.CrawlID = crawlID
	}

	if len(key) > maxQueueKeyLength {
		f.logger.Error("key too long", logpkg.Str("key", key), logpkg.Str("url", rawURL))
		return rawURL, true
	}

	q := QueueWithinCrawl{CrawlID: crawlID, Queue: key}

	if f.isDeleting(q) {
		f.logger.Info("queue being deleted, url dropped",
			logpkg.Str("queue", key), logpkg.Str("url", rawURL))
		return rawURL, true
	}

	eKey := existenceKey(q, rawURL)
	prior, err := f.db.Get(pebblestore.KeyspaceURL, eKey)
	known := true
	if err != nil {
		if !errors.Is(err, pebblestore.ErrNotFound) {
			f.logger.WithError(err).Error("store read failed", logpkg.Str("url", rawURL))
			return "", false
		}
		known = false
	}

	// Already known discoveries carry no new information.
	if known && discovered {
		return rawURL, true
	}

	md, _ := f.queues.GetOrInsert(q)

	batch := f.db.NewBatch()
	defer batch.Close()

	removedPrior := false
	if known && len(prior) > 0 {
		// reschedule: drop the entry the existence value points at
		if err := batch.Delete(pebblestore.KeyspaceSched, prior); err != nil {
			f.logger.WithError(err).Error("store write failed", logpkg.Str("url", rawURL))
			return "", false
		}
		removedPrior = true
	}

	var schedKey []byte
	done := !discovered && nextFetchDate == 0
	if done {
		// never refetch: the existence value becomes empty, no scheduling entry
		schedKey = []byte{}
	} else {
		schedKey = schedulingKey(q, nextFetchDate, rawURL)
		if err := batch.Set(pebblestore.KeyspaceSched, schedKey, EncodeURLInfo(info)); err != nil {
			f.logger.WithError(err).Error("store write failed", logpkg.Str("url", rawURL))
			return "", false
		}
	}
	if err := batch.Set(pebblestore.KeyspaceURL, eKey, schedKey); err != nil {
		f.logger.WithError(err).Error("store write failed", logpkg.Str("url", rawURL))
		return "", false
	}
	if err := f.db.Commit(batch); err != nil {
		f.logger.WithError(err).Error("store commit failed", logpkg.Str("url", rawURL))
		return "", false
	}

	if removedPrior {
		md.RemoveFromProcessed(rawURL)
		md.DecrementActive()
	}
	if done {
		md.IncrementCompleted()
	} else {
		md.IncrementActive()
	}
	return rawURL, true
}

// provideMissingKey derives a queue key from the URL host, normalizing the
// URL first so scheme/host casing and fragments do not split queues.
func provideMissingKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	normalized := purell.NormalizeURL(u, purell.FlagsSafe|purell.FlagRemoveFragment)
	nu, err := url.Parse(normalized)
	if err != nil || nu.Host == "" {
		return ""
	}
	return nu.Hostname()
}
