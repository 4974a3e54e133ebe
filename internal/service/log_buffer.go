package service

import (
	"sync"

	"devdash/internal/models"
)

// DefaultLogCapacity is the number of entries retained per process.
const DefaultLogCapacity = 1000

// ring is a fixed-capacity FIFO. Appending to a full ring overwrites the
// oldest entry.
type ring struct {
	entries []models.LogEntry
	start   int
	size    int
}

func (r *ring) push(e models.LogEntry) {
	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.start+r.size)%capacity] = e
		r.size++
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % capacity
}

func (r *ring) last(n int) []models.LogEntry {
	if n > r.size {
		n = r.size
	}
	result := make([]models.LogEntry, n)
	capacity := len(r.entries)
	offset := r.size - n
	for i := 0; i < n; i++ {
		result[i] = r.entries[(r.start+offset+i)%capacity]
	}
	return result
}

// LogBuffer keeps a bounded ring of log entries per process id. Every
// appended entry is stamped with a sequence number that increases across
// the whole buffer and is never reused.
type LogBuffer struct {
	mu       sync.RWMutex
	buffers  map[string]*ring
	capacity int
	seq      uint64
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{
		buffers:  make(map[string]*ring),
		capacity: capacity,
	}
}

// Append stores entry for id, evicting the oldest entry when full, and
// returns the stored copy with its sequence number set.
func (lb *LogBuffer) Append(id string, entry models.LogEntry) models.LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	r, ok := lb.buffers[id]
	if !ok {
		r = &ring{entries: make([]models.LogEntry, lb.capacity)}
		lb.buffers[id] = r
	}
	lb.seq++
	entry.Seq = lb.seq
	r.push(entry)
	return entry
}

// All returns every retained entry for id, oldest first.
func (lb *LogBuffer) All(id string) []models.LogEntry {
	return lb.Recent(id, lb.capacity)
}

// Recent returns up to the last n entries for id, oldest first.
func (lb *LogBuffer) Recent(id string, n int) []models.LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	r, ok := lb.buffers[id]
	if !ok || n <= 0 {
		return []models.LogEntry{}
	}
	return r.last(n)
}

// Len reports how many entries are retained for id.
func (lb *LogBuffer) Len(id string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if r, ok := lb.buffers[id]; ok {
		return r.size
	}
	return 0
}

func (lb *LogBuffer) Clear(id string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	delete(lb.buffers, id)
}

func (lb *LogBuffer) ClearAll() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.buffers = make(map[string]*ring)
}
