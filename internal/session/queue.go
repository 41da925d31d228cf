package session

import (
	"sync"
	"time"

	"github.com/smartcapture/sessionlink/internal/metrics"
)

// queuedMessage is an outbound message buffered while the channel is
// down.
type queuedMessage struct {
	payload    any
	enqueuedAt time.Time
}

// messageQueue is a bounded FIFO of messages produced while
// disconnected. Overflow evicts the oldest entry; drain discards
// entries older than maxAge.
type messageQueue struct {
	mu      sync.Mutex
	max     int
	maxAge  time.Duration
	entries []queuedMessage
}

func newMessageQueue(max int, maxAge time.Duration) *messageQueue {
	return &messageQueue{max: max, maxAge: maxAge}
}

// enqueue appends a message, evicting the oldest entry when the queue
// is full. The newest state of a session is worth more than the oldest.
func (q *messageQueue) enqueue(payload any) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.max {
		q.entries = q.entries[1:]
		metrics.QueueEvictions.Inc()
	}

	q.entries = append(q.entries, queuedMessage{payload: payload, enqueuedAt: time.Now()})
	metrics.MessagesQueued.Inc()
	metrics.QueueDepth.Set(float64(len(q.entries)))
}

// drain empties the queue and returns the entries younger than maxAge
// in original order. Expired entries are dropped, never re-queued: the
// queue is empty when drain returns regardless of the age filter.
func (q *messageQueue) drain() []queuedMessage {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)

	now := time.Now()

	var fresh []queuedMessage

	for _, m := range entries {
		if now.Sub(m.enqueuedAt) < q.maxAge {
			fresh = append(fresh, m)
		} else {
			metrics.QueueExpired.Inc()
		}
	}

	return fresh
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}
