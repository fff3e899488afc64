// This file implements LFU eviction.

package eviction

// lfuNode represents one key tracked by LFU.
type lfuNode[K comparable] struct {
	key  K
	freq int    // how many times this key was accessed
	seq  uint64 // insertion sequence, used to break frequency ties
}

type lfu[K comparable] struct {
	nodes map[K]*lfuNode[K]

	// freqMap groups keys by how many times they were accessed
	freqMap map[int]map[K]*lfuNode[K]

	// minFreq keeps track of the smallest frequency currently present.
	// This avoids scanning every bucket on eviction.
	minFreq int

	seq uint64
}

func newLFU[K comparable]() *lfu[K] {
	return &lfu[K]{
		nodes:   make(map[K]*lfuNode[K]),
		freqMap: make(map[int]map[K]*lfuNode[K]),
	}
}

func (l *lfu[K]) OnGet(k K) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}
	l.bump(n)
}

func (l *lfu[K]) OnPut(k K) {
	if n, ok := l.nodes[k]; ok {
		l.bump(n)
		return
	}

	l.seq++
	n := &lfuNode[K]{key: k, freq: 1, seq: l.seq}
	l.nodes[k] = n
	l.bucket(1)[k] = n

	// A new key with freq=1 exists, so minFreq must be 1
	l.minFreq = 1
}

// Evict removes a key with the lowest frequency. Within that bucket the
// earliest inserted key goes first.
func (l *lfu[K]) Evict() (K, bool) {
	var victim *lfuNode[K]
	for _, n := range l.freqMap[l.minFreq] {
		if victim == nil || n.seq < victim.seq {
			victim = n
		}
	}
	if victim == nil {
		var zero K
		return zero, false
	}
	l.drop(victim)
	return victim.key, true
}

func (l *lfu[K]) Remove(k K) {
	if n, ok := l.nodes[k]; ok {
		l.drop(n)
	}
}

// Keys returns keys ordered by descending frequency; the next victim is last.
func (l *lfu[K]) Keys() []K {
	out := make([]K, 0, len(l.nodes))
	maxFreq := 0
	for f := range l.freqMap {
		maxFreq = max(maxFreq, f)
	}
	for f := maxFreq; f >= 1; f-- {
		bucket := l.freqMap[f]
		if len(bucket) == 0 {
			continue
		}
		ordered := make([]*lfuNode[K], 0, len(bucket))
		for _, n := range bucket {
			ordered = append(ordered, n)
		}
		// newest first inside a bucket
		for i := 1; i < len(ordered); i++ {
			for j := i; j > 0 && ordered[j].seq > ordered[j-1].seq; j-- {
				ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			}
		}
		for _, n := range ordered {
			out = append(out, n.key)
		}
	}
	return out
}

func (l *lfu[K]) Len() int { return len(l.nodes) }

func (l *lfu[K]) bucket(freq int) map[K]*lfuNode[K] {
	b := l.freqMap[freq]
	if b == nil {
		b = make(map[K]*lfuNode[K])
		l.freqMap[freq] = b
	}
	return b
}

func (l *lfu[K]) bump(n *lfuNode[K]) {
	old := n.freq
	n.freq++

	delete(l.freqMap[old], n.key)
	if len(l.freqMap[old]) == 0 {
		delete(l.freqMap, old)
		if l.minFreq == old {
			l.minFreq = n.freq
		}
	}
	l.bucket(n.freq)[n.key] = n
}

func (l *lfu[K]) drop(n *lfuNode[K]) {
	delete(l.freqMap[n.freq], n.key)
	if len(l.freqMap[n.freq]) == 0 {
		delete(l.freqMap, n.freq)
	}
	delete(l.nodes, n.key)

	if n.freq == l.minFreq && len(l.nodes) > 0 {
		l.recomputeMin()
	}
}

func (l *lfu[K]) recomputeMin() {
	l.minFreq = 0
	for f := range l.freqMap {
		if l.minFreq == 0 || f < l.minFreq {
			l.minFreq = f
		}
	}
}
