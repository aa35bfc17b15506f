package eventbus

import (
	"sync"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/gwtypes"
)

// ErrorRing is a fixed-capacity ring buffer of the last failures observed
// at the HTTP layer, grounded on original_source's error_ring.c.
type ErrorRing struct {
	mu      sync.Mutex
	entries []gwtypes.ErrorEntry
	next    int
	count   int
}

// NewErrorRing creates an error ring with capacity config.ErrorRingSize.
func NewErrorRing() *ErrorRing {
	return &ErrorRing{entries: make([]gwtypes.ErrorEntry, config.ErrorRingSize)}
}

// Record appends an entry, overwriting the oldest once the ring is full.
func (r *ErrorRing) Record(entry gwtypes.ErrorEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.count < len(r.entries) {
		r.count++
	}
}

// Snapshot returns the ring's entries in oldest-to-newest order.
func (r *ErrorRing) Snapshot() []gwtypes.ErrorEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]gwtypes.ErrorEntry, r.count)
	start := (r.next - r.count + len(r.entries)) % len(r.entries)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}
