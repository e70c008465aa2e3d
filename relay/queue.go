package relay

import (
	"fmt"
	"sync"
)

type queueEntry struct {
	seq  uint64
	data []byte
}

// Queue is the bounded FIFO between the source and sink loops. When full,
// Push drops the oldest entry.
//
// Entries carry a sequence number so the sink can acknowledge exactly the
// entry it sent even if that entry was dropped meanwhile.
type Queue struct {
	mu       sync.Mutex
	entries  []queueEntry
	capacity int
	nextSeq  uint64
	dropped  uint64
	notify   chan struct{}
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue: capacity must be positive, got %d", capacity))
	}
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a message and reports whether an older one was dropped to
// make room.
func (q *Queue) Push(data []byte) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		q.entries[0] = queueEntry{}
		q.entries = q.entries[1:]
		q.dropped++
		dropped = true
	}
	q.nextSeq++
	q.entries = append(q.entries, queueEntry{seq: q.nextSeq, data: data})

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Peek returns the oldest entry without removing it.
func (q *Queue) Peek() (uint64, []byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return 0, nil, false
	}
	return q.entries[0].seq, q.entries[0].data, true
}

// Ack removes the oldest entry if it is still the one identified by seq.
func (q *Queue) Ack(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) > 0 && q.entries[0].seq == seq {
		q.entries[0] = queueEntry{}
		q.entries = q.entries[1:]
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Notify signals (at most once per pending wake-up) that data was pushed.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
