package frontier

import (
	"context"
	"strings"
	"testing"

	pebblestore "github.com/rzbill/urlfrontier/internal/storage/pebble"
)

func openTestStore(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return db
}

func openTestFrontier(t *testing.T) *Frontier {
	t.Helper()
	db := openTestStore(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	f, err := Open(db, Options{})
	if err != nil {
		t.Fatalf("open frontier: %v", err)
	}
	f.now = func() int64 { return 1000 }
	return f
}

func discovered(url, key, crawlID string) URLItem {
	return URLItem{Discovered: &DiscoveredURL{Info: URLInfo{URL: url, Key: key, CrawlID: crawlID}}}
}

func knownAt(url string, refetchable int64) URLItem {
	return URLItem{Known: &KnownURL{Info: URLInfo{URL: url}, RefetchableFromDate: refetchable}}
}

func putItems(t *testing.T, f *Frontier, items ...URLItem) []string {
	t.Helper()
	in := make(chan URLItem)
	acks := make(chan string, len(items)+1)
	done := make(chan struct{})
	go func() {
		_ = f.PutURLs(context.Background(), in, acks)
		close(done)
	}()
	for _, item := range items {
		in <- item
	}
	close(in)
	<-done
	var out []string
	for a := range acks {
		out = append(out, a)
	}
	return out
}

func getURLs(t *testing.T, f *Frontier, params GetParams) []URLInfo {
	t.Helper()
	out := make(chan URLInfo, 128)
	if err := f.GetURLs(context.Background(), params, out); err != nil {
		t.Fatalf("get urls: %v", err)
	}
	var res []URLInfo
	for info := range out {
		res = append(res, info)
	}
	return res
}

func TestInsertAndDispatch(t *testing.T) {
	f := openTestFrontier(t)

	acks := putItems(t, f, discovered("http://a/x", "", ""))
	if len(acks) != 1 || acks[0] != "http://a/x" {
		t.Fatalf("acks %v", acks)
	}

	got := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1, DelayRequestable: 30})
	if len(got) != 1 || got[0].URL != "http://a/x" {
		t.Fatalf("got %v", got)
	}
	// host-derived key and normalized crawl id were written back
	if got[0].Key != "a" || got[0].CrawlID != DefaultCrawlID {
		t.Fatalf("info not rewritten: %+v", got[0])
	}

	// still held: an immediate second get emits nothing
	if again := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1, DelayRequestable: 30}); len(again) != 0 {
		t.Fatalf("held URL re-emitted: %v", again)
	}

	// after the hold expires it comes back
	f.now = func() int64 { return 1031 }
	if again := getURLs(t, f, GetParams{}); len(again) != 1 {
		t.Fatalf("expired hold did not release: %v", again)
	}
}

func TestUnderscoreEscape(t *testing.T) {
	f := openTestFrontier(t)

	putItems(t, f, discovered("http://a/x", "q_1", "c_2"))

	it, err := f.db.NewIter(pebblestore.KeyspaceURL, nil)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	defer it.Close()
	if !it.First() {
		t.Fatalf("no existence entry")
	}
	key := string(it.Key())
	if !strings.HasPrefix(key, "c%5F2_q%5F1_") {
		t.Fatalf("existence key %q", key)
	}
	parsed, err := parseQueue(it.Key())
	if err != nil || parsed.CrawlID != "c_2" || parsed.Queue != "q_1" {
		t.Fatalf("parsed %v (%v)", parsed, err)
	}
}

func TestKnownToCompleted(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f, discovered("http://a/x", "", ""))
	putItems(t, f, knownAt("http://a/x", 0))

	q := QueueWithinCrawl{CrawlID: DefaultCrawlID, Queue: "a"}
	md := f.queues.Get(q)
	if md == nil {
		t.Fatalf("queue missing")
	}
	if md.CountActive() != 0 || md.CountCompleted() != 1 {
		t.Fatalf("active=%d completed=%d", md.CountActive(), md.CountCompleted())
	}

	if got := getURLs(t, f, GetParams{}); len(got) != 0 {
		t.Fatalf("completed URL dispatched: %v", got)
	}

	// existence entry remains with an empty value; no scheduling entry
	val, err := f.db.Get(pebblestore.KeyspaceURL, existenceKey(q, "http://a/x"))
	if err != nil || len(val) != 0 {
		t.Fatalf("existence value %q (%v)", val, err)
	}
	n, err := f.countScheduled(q)
	if err != nil || n != 0 {
		t.Fatalf("scheduled entries remain: %d (%v)", n, err)
	}
}

func TestReschedule(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f, discovered("http://a/x", "", ""))
	putItems(t, f, knownAt("http://a/x", 1000+3600))

	if got := getURLs(t, f, GetParams{}); len(got) != 0 {
		t.Fatalf("future URL dispatched early: %v", got)
	}

	f.now = func() int64 { return 1000 + 3601 }
	got := getURLs(t, f, GetParams{})
	if len(got) != 1 || got[0].URL != "http://a/x" {
		t.Fatalf("rescheduled URL missing: %v", got)
	}
}

func TestDiscoveredIsIdempotent(t *testing.T) {
	f := openTestFrontier(t)
	for i := 0; i < 5; i++ {
		putItems(t, f, discovered("http://a/x", "", ""))
	}
	q := QueueWithinCrawl{CrawlID: DefaultCrawlID, Queue: "a"}
	md := f.queues.Get(q)
	if md.CountActive() != 1 {
		t.Fatalf("active=%d after repeated discoveries", md.CountActive())
	}
	n, _ := f.countScheduled(q)
	if n != 1 {
		t.Fatalf("scheduled=%d", n)
	}
}

func TestRoundRobinFairness(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h2/1", "", ""),
		discovered("http://h1/2", "", ""),
	)

	got := getURLs(t, f, GetParams{MaxURLsPerQueue: 1})
	if len(got) != 2 {
		t.Fatalf("want one URL per queue, got %v", got)
	}
	// order follows registry insertion: h1 was seen first
	if got[0].URL != "http://h1/1" || got[1].URL != "http://h2/1" {
		t.Fatalf("got %v", got)
	}
}

func TestRoundRobinCursorRotates(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h2/1", "", ""),
		discovered("http://h1/2", "", ""),
	)

	// with maxQueues=1 each call serves the queue at the cursor and the
	// cursor moves on, so no queue can starve the other
	first := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1})
	second := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1})
	third := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1})

	if len(first) != 1 || first[0].URL != "http://h1/1" {
		t.Fatalf("first %v", first)
	}
	if len(second) != 1 || second[0].URL != "http://h2/1" {
		t.Fatalf("second %v", second)
	}
	if len(third) != 1 || third[0].URL != "http://h1/2" {
		t.Fatalf("third %v", third)
	}
}

func TestDeleteQueueRange(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://a/1", "", ""),
		discovered("http://a/2", "", ""),
		discovered("http://b/1", "", ""),
	)
	// complete one so the count covers active + completed
	putItems(t, f, knownAt("http://a/2", 0))

	n, err := f.DeleteQueue("", "a")
	if err != nil {
		t.Fatalf("delete queue: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}

	// b is intact, a is gone from both families
	got := getURLs(t, f, GetParams{})
	if len(got) != 1 || got[0].URL != "http://b/1" {
		t.Fatalf("got %v", got)
	}
	bQ := QueueWithinCrawl{CrawlID: DefaultCrawlID, Queue: "b"}
	if f.queues.Get(bQ) == nil {
		t.Fatalf("queue b lost")
	}
	aQ := QueueWithinCrawl{CrawlID: DefaultCrawlID, Queue: "a"}
	if f.queues.Get(aQ) != nil {
		t.Fatalf("queue a still registered")
	}
	if _, err := f.db.Get(pebblestore.KeyspaceURL, existenceKey(aQ, "http://a/1")); err == nil {
		t.Fatalf("existence entry for a survived")
	}

	// idempotent: a second delete returns 0
	n, err = f.DeleteQueue("", "a")
	if err != nil || n != 0 {
		t.Fatalf("second delete: %d %v", n, err)
	}
}

func TestDeleteCrawl(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://a/1", "", "one"),
		discovered("http://b/1", "", "one"),
		discovered("http://a/1", "", "two"),
	)

	n, err := f.DeleteCrawl("one")
	if err != nil {
		t.Fatalf("delete crawl: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted %d, want 2", n)
	}
	if f.NumQueues() != 1 {
		t.Fatalf("queues left: %d", f.NumQueues())
	}
	got := getURLs(t, f, GetParams{})
	if len(got) != 1 || got[0].CrawlID != "two" {
		t.Fatalf("crawl two damaged: %v", got)
	}

	n, err = f.DeleteCrawl("one")
	if err != nil || n != 0 {
		t.Fatalf("second delete: %d %v", n, err)
	}
}

func TestPutDroppedWhileDeleting(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f, discovered("http://a/1", "", ""))

	q := QueueWithinCrawl{CrawlID: DefaultCrawlID, Queue: "a"}
	f.deleting.Store(q, struct{}{})
	acks := putItems(t, f, discovered("http://a/2", "", ""))
	f.deleting.Delete(q)

	// dropped but still acknowledged
	if len(acks) != 1 || acks[0] != "http://a/2" {
		t.Fatalf("acks %v", acks)
	}
	n, _ := f.countScheduled(q)
	if n != 1 {
		t.Fatalf("url was not dropped: %d scheduled", n)
	}
}

func TestMalformedURLDropped(t *testing.T) {
	f := openTestFrontier(t)
	acks := putItems(t, f, discovered("::not-a-url::", "", ""))
	if len(acks) != 1 {
		t.Fatalf("malformed URL must still be acked: %v", acks)
	}
	if f.NumQueues() != 0 {
		t.Fatalf("no queue should exist")
	}
}

func TestOverlongKeyDropped(t *testing.T) {
	f := openTestFrontier(t)
	acks := putItems(t, f, discovered("http://a/x", strings.Repeat("k", 256), ""))
	if len(acks) != 1 {
		t.Fatalf("overlong key must still be acked")
	}
	if f.NumQueues() != 0 {
		t.Fatalf("no queue should exist")
	}
}

func TestListQueues(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h2/1", "", ""),
	)
	// h2 rescheduled into the future: not dispatchable
	putItems(t, f, knownAt("http://h2/1", 5000))

	queues, err := f.ListQueues("", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queues) != 1 || queues[0] != "h1" {
		t.Fatalf("queues %v", queues)
	}

	// the cap is inclusive: max 1 returns at most 1
	putItems(t, f, discovered("http://h3/1", "", ""))
	queues, _ = f.ListQueues("", 1)
	if len(queues) != 1 {
		t.Fatalf("cap ignored: %v", queues)
	}
}

func TestGetStats(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h1/2", "", ""),
		discovered("http://h2/1", "", ""),
	)
	putItems(t, f, knownAt("http://h1/2", 0))

	// one URL is in flight
	got := getURLs(t, f, GetParams{MaxQueues: 1, MaxURLsPerQueue: 1})
	if len(got) != 1 {
		t.Fatalf("dispatch failed: %v", got)
	}

	stats, err := f.GetStats("", "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.NumberOfQueues != 2 {
		t.Fatalf("numberOfQueues=%d", stats.NumberOfQueues)
	}
	if stats.Size != 3 {
		t.Fatalf("size=%d", stats.Size)
	}
	if stats.InProcess != 1 {
		t.Fatalf("inProcess=%d", stats.InProcess)
	}
	if stats.Counts[StatusActive] != 2 || stats.Counts[StatusCompleted] != 1 {
		t.Fatalf("counts %v", stats.Counts)
	}

	// single-queue stats
	stats, err = f.GetStats("", "h1")
	if err != nil {
		t.Fatalf("stats h1: %v", err)
	}
	if stats.NumberOfQueues != 1 || stats.Size != 2 || stats.Counts[StatusCompleted] != 1 {
		t.Fatalf("h1 stats %+v", stats)
	}
}

func TestGetForNamedQueue(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h2/1", "", ""),
	)

	got := getURLs(t, f, GetParams{Key: "h2"})
	if len(got) != 1 || got[0].URL != "http://h2/1" {
		t.Fatalf("named queue got %v", got)
	}

	// unknown queue emits nothing
	if got := getURLs(t, f, GetParams{Key: "nope"}); len(got) != 0 {
		t.Fatalf("unknown queue emitted %v", got)
	}
}

func TestGetCancelledClient(t *testing.T) {
	f := openTestFrontier(t)
	putItems(t, f,
		discovered("http://h1/1", "", ""),
		discovered("http://h1/2", "", ""),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan URLInfo) // unbuffered: emission must block, then observe ctx
	err := f.GetURLs(ctx, GetParams{}, out)
	if err == nil {
		t.Fatalf("cancelled get should report ctx error")
	}
	for range out {
	}
}
