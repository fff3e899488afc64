// This file implements FIFO eviction.

package eviction

type fifo[K comparable] struct {
	// queue keeps keys in the order they were first inserted.
	// The front of the queue (index 0) is the oldest key.
	queue []K

	// set keeps track of which keys are currently in the queue.
	set map[K]struct{}
}

func newFIFO[K comparable]() *fifo[K] {
	return &fifo[K]{
		queue: make([]K, 0),
		set:   make(map[K]struct{}),
	}
}

// OnGet is ignored: FIFO only cares about insertion order.
func (f *fifo[K]) OnGet(K) {}

// OnPut enqueues new keys. Replacing a tracked key keeps its position.
func (f *fifo[K]) OnPut(k K) {
	if _, ok := f.set[k]; ok {
		return
	}
	f.queue = append(f.queue, k)
	f.set[k] = struct{}{}
}

// Evict pops the oldest key.
func (f *fifo[K]) Evict() (K, bool) {
	if len(f.queue) == 0 {
		var zero K
		return zero, false
	}
	k := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.set, k)
	return k, true
}

func (f *fifo[K]) Remove(k K) {
	if _, ok := f.set[k]; !ok {
		return
	}
	delete(f.set, k)

	// Remove from queue while preserving order
	for i, v := range f.queue {
		if v == k {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
}

// Keys returns newest first, so the next victim is last.
func (f *fifo[K]) Keys() []K {
	out := make([]K, 0, len(f.queue))
	for i := len(f.queue) - 1; i >= 0; i-- {
		out = append(out, f.queue[i])
	}
	return out
}

func (f *fifo[K]) Len() int { return len(f.queue) }
