// Package transcript holds transcript fragments on their way to the client
// and to disk.
package transcript

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO of fragment texts. Enqueue never blocks and
// never drops; Dequeue waits up to a timeout for the next fragment.
type Queue struct {
	mu     sync.Mutex
	items  []string
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends text to the tail of the queue.
func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.items = append(q.items, text)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the head of the queue. It returns false when
// nothing arrives within timeout or ctx is done.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, bool) {
	if text, ok := q.pop(); ok {
		return text, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if text, ok := q.pop(); ok {
				return text, true
			}
		case <-timer.C:
			return q.pop()
		case <-ctx.Done():
			return "", false
		}
	}
}

// Len returns the number of queued fragments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	text := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]

	// Another consumer may be waiting on the token this call consumed.
	if len(q.items) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return text, true
}
