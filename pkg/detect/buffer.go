// Package detect implements the Rule-Based Detectors (C4, D1-D11): each
// detector is a pure function (sample, history, stats, config) ->
// []Threat, registered into a static dispatch list per spec §9's
// "duck-typed dispatch -> trait/interface" design note. Grounded on
// other_examples/..._internal-anomaly-detector.go.go's detectAnomalies
// fan-out idiom and on original_source/cellular_security.py's and
// advanced_cellular_security.py's per-check thresholds.
package detect

import (
	"sync"

	"github.com/MdrnDme/clutch/pkg/cellular"
)

// BufferCapacity is the detection buffer size (distinct from the
// smaller streaming-statistics window).
const BufferCapacity = 1000

// Buffer is a capacity-bounded, append-only-with-eviction history of
// measurements, grounded on pkg/telem/store.go's RingBuffer.
type Buffer struct {
	mu       sync.RWMutex
	items    []cellular.Measurement
	capacity int
	start    int
}

// NewBuffer creates a Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = BufferCapacity
	}
	return &Buffer{capacity: capacity}
}

// Push appends a measurement, evicting the oldest once at capacity.
func (b *Buffer) Push(m cellular.Measurement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) < b.capacity {
		b.items = append(b.items, m)
		return
	}
	b.items[b.start] = m
	b.start = (b.start + 1) % b.capacity
}

// Len returns the number of measurements currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// All returns every held measurement, oldest first.
func (b *Buffer) All() []cellular.Measurement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ordered()
}

func (b *Buffer) ordered() []cellular.Measurement {
	if len(b.items) < b.capacity {
		out := make([]cellular.Measurement, len(b.items))
		copy(out, b.items)
		return out
	}
	out := make([]cellular.Measurement, b.capacity)
	copy(out, b.items[b.start:])
	copy(out[b.capacity-b.start:], b.items[:b.start])
	return out
}

// Last returns the n most-recently pushed measurements, oldest first,
// and whether at least n are available.
func (b *Buffer) Last(n int) ([]cellular.Measurement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) < n {
		return nil, false
	}
	all := b.ordered()
	return all[len(all)-n:], true
}

// Previous returns the measurement immediately before the most recent
// push, if any.
func (b *Buffer) Previous() (cellular.Measurement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.items) < 2 {
		return cellular.Measurement{}, false
	}
	all := b.ordered()
	return all[len(all)-2], true
}
