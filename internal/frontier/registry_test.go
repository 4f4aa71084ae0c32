package frontier

import "testing"

func qwc(crawl, queue string) QueueWithinCrawl {
	return QueueWithinCrawl{CrawlID: crawl, Queue: queue}
}

func TestGetOrInsert(t *testing.T) {
	r := NewRegistry()
	md, created := r.GetOrInsert(qwc("c", "a"))
	if !created || md == nil {
		t.Fatalf("first insert must create")
	}
	again, created := r.GetOrInsert(qwc("c", "a"))
	if created || again != md {
		t.Fatalf("second insert must return the original")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRotation(t *testing.T) {
	r := NewRegistry()
	r.GetOrInsert(qwc("c", "a"))
	r.GetOrInsert(qwc("c", "b"))
	r.GetOrInsert(qwc("c", "c"))

	var seen []string
	for i := 0; i < 4; i++ {
		k, ok := r.NextKey()
		if !ok {
			t.Fatalf("next key missing")
		}
		seen = append(seen, k.Queue)
		r.MoveToNext()
	}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("rotation %v want %v", seen, want)
		}
	}
}

func TestRemoveAdjustsCursor(t *testing.T) {
	r := NewRegistry()
	r.GetOrInsert(qwc("c", "a"))
	r.GetOrInsert(qwc("c", "b"))
	r.GetOrInsert(qwc("c", "c"))
	r.MoveToNext() // cursor on b

	if md := r.Remove(qwc("c", "a")); md == nil {
		t.Fatalf("remove should return metadata")
	}
	k, ok := r.NextKey()
	if !ok || k.Queue != "b" {
		t.Fatalf("cursor should still point at b, got %v", k)
	}
	if r.Remove(qwc("c", "a")) != nil {
		t.Fatalf("second remove should return nil")
	}
}

func TestRemoveLastWrapsCursor(t *testing.T) {
	r := NewRegistry()
	r.GetOrInsert(qwc("c", "a"))
	r.GetOrInsert(qwc("c", "b"))
	r.MoveToNext() // cursor on b
	r.Remove(qwc("c", "b"))
	k, ok := r.NextKey()
	if !ok || k.Queue != "a" {
		t.Fatalf("cursor should wrap to a, got %v ok=%v", k, ok)
	}
}

func TestKeysIsACopy(t *testing.T) {
	r := NewRegistry()
	r.GetOrInsert(qwc("c", "a"))
	keys := r.Keys()
	r.GetOrInsert(qwc("c", "b"))
	if len(keys) != 1 {
		t.Fatalf("snapshot should not grow")
	}
}

func TestSortedKeysUsesEncodedOrder(t *testing.T) {
	r := NewRegistry()
	// '_' escapes to "%5F", so "a_b" sorts before "a0b" in encoded form
	// even though raw '_' (0x5F) > '0' (0x30).
	r.GetOrInsert(qwc("c", "a0b"))
	r.GetOrInsert(qwc("c", "a_b"))
	sorted := r.SortedKeys()
	if sorted[0].Queue != "a_b" || sorted[1].Queue != "a0b" {
		t.Fatalf("sorted %v", sorted)
	}
}

func TestEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.NextKey(); ok {
		t.Fatalf("empty registry has no next key")
	}
	r.MoveToNext()
	if r.Remove(qwc("c", "a")) != nil {
		t.Fatalf("remove on empty should return nil")
	}
}
