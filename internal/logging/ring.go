// pattern: Imperative Shell

package logging

import (
	"fmt"
	"sync"
)

// Ring keeps the most recent log entries, oldest first. A capacity of zero
// keeps everything. Ring is also a zapcore.WriteSyncer so a zap core can
// record into it directly.
type Ring struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
	dropped  int
	closed   bool
}

// NewRing creates a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{capacity: capacity}
}

// Write decodes one JSON line from zap and records it. Lines that are not
// log entries are accepted and ignored so logging never blocks on them.
func (r *Ring) Write(p []byte) (int, error) {
	entry, err := ParseEntry(p)
	if err != nil {
		return len(p), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, fmt.Errorf("write to closed log ring")
	}
	r.add(entry)
	return len(p), nil
}

// Add records an already decoded entry, e.g. one read back from a log file.
func (r *Ring) Add(entry LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.add(entry)
	}
}

func (r *Ring) add(entry LogEntry) {
	if r.capacity > 0 && len(r.entries) == r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries[len(r.entries)-1] = entry
		r.dropped++
		return
	}
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (r *Ring) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), r.entries...)
}

// Drain returns the recorded entries and empties the ring.
func (r *Ring) Drain() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}

// Dropped reports how many entries were evicted to respect the capacity.
func (r *Ring) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Sync implements zapcore.WriteSyncer.
func (r *Ring) Sync() error {
	return nil
}

// Close rejects further writes. Recorded entries stay readable. Safe to call
// multiple times.
func (r *Ring) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
