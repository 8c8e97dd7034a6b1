package analytics

import (
	"sync"

	"github.com/nsharda/edge-gateway/internal/models"
)

// DefaultCapacity bounds the request log to roughly 2 MB of records.
const DefaultCapacity = 10000

// Buffer is a fixed-capacity circular log. Once full, the oldest record is
// overwritten; head is the index of the oldest live record.
type Buffer struct {
	mu       sync.Mutex
	logs     []models.RequestLog
	head     int
	count    int
	capacity int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		logs:     make([]models.RequestLog, capacity),
		capacity: capacity,
	}
}

// Add appends a record, evicting the oldest when full. Amortized O(1).
func (b *Buffer) Add(record models.RequestLog) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < b.capacity {
		b.logs[b.count] = record
		b.count++
		return
	}

	b.logs[b.head] = record
	b.head = (b.head + 1) % b.capacity
}

// Len returns the number of live records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Snapshot copies the live records in chronological order. Aggregations run
// on the copy so the buffer lock is never held during computation.
func (b *Buffer) Snapshot() []models.RequestLog {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.RequestLog, 0, b.count)

	if b.count < b.capacity {
		return append(out, b.logs[:b.count]...)
	}

	out = append(out, b.logs[b.head:]...)
	return append(out, b.logs[:b.head]...)
}

// Recent returns the live records newest-first.
func (b *Buffer) Recent() []models.RequestLog {
	ordered := b.Snapshot()
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered
}
