package frontier

import (
	"bytes"
	"sort"
	"sync"
)

// Registry is a rotating collection of queues: insertion-ordered for fair
// round-robin dispatch, keyed for O(1) metadata lookup, with a cursor that
// wraps at the end.
type Registry struct {
	mu       sync.Mutex
	order    []QueueWithinCrawl
	index    map[QueueWithinCrawl]*QueueMetadata
	position int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[QueueWithinCrawl]*QueueMetadata)}
}

// Get returns the metadata for q, or nil if unknown.
func (r *Registry) Get(q QueueWithinCrawl) *QueueMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[q]
}

// GetOrInsert returns q's metadata, creating it (and appending q to the
// rotation) when absent. The second result reports whether q was created.
func (r *Registry) GetOrInsert(q QueueWithinCrawl) (*QueueMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if md, ok := r.index[q]; ok {
		return md, false
	}
	md := NewQueueMetadata()
	r.index[q] = md
	r.order = append(r.order, q)
	return md, true
}

// Remove drops q from the registry and the rotation, returning its
// metadata or nil.
func (r *Registry) Remove(q QueueWithinCrawl) *QueueMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.index[q]
	if !ok {
		return nil
	}
	delete(r.index, q)
	for i := range r.order {
		if r.order[i] == q {
			r.order = append(r.order[:i], r.order[i+1:]...)
			if r.position > i {
				r.position--
			}
			break
		}
	}
	if len(r.order) == 0 {
		r.position = 0
	} else if r.position >= len(r.order) {
		r.position = 0
	}
	return md
}

// Keys copies the rotation order so callers can iterate without holding
// the registry lock. The copy may lag concurrent changes.
func (r *Registry) Keys() []QueueWithinCrawl {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]QueueWithinCrawl{}, r.order...)
}

// SortedKeys returns the queues ordered by their encoded key prefix, the
// order the store iterates them in. Used to compute range-delete bounds.
func (r *Registry) SortedKeys() []QueueWithinCrawl {
	keys := r.Keys()
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(queuePrefix(keys[i]), queuePrefix(keys[j])) < 0
	})
	return keys
}

// Len returns the number of registered queues.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// NextKey returns the queue at the cursor without advancing it.
func (r *Registry) NextKey() (QueueWithinCrawl, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return QueueWithinCrawl{}, false
	}
	if r.position >= len(r.order) {
		r.position = 0
	}
	return r.order[r.position], true
}

// MoveToNext advances the cursor by one, wrapping at the end.
func (r *Registry) MoveToNext() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position++
	if r.position >= len(r.order) {
		r.position = 0
	}
}
