package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

var (
	// ErrTimeout is returned by Poll when no event arrived in time
	ErrTimeout = errors.New("no event received")
	// ErrClosed is returned once the queue has been closed
	ErrClosed = errors.New("event queue closed")
)

// Sink accepts events from workers. Implementations must be safe for concurrent use.
type Sink interface {
	Put(e Event)
}

// Queue is the single ordered channel between all workers and the coordinator.
// Any number of goroutines may Put; one consumer Polls.
type Queue struct {
	q *queue.Queue
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	return &Queue{q: queue.New(64)}
}

// Put appends an event. Events put after Close are dropped.
func (q *Queue) Put(e Event) {
	_ = q.q.Put(e)
}

// Poll waits up to timeout for the next event
func (q *Queue) Poll(timeout time.Duration) (Event, error) {
	items, err := q.q.Poll(1, timeout)
	switch {
	case errors.Is(err, queue.ErrTimeout):
		return Event{}, ErrTimeout
	case errors.Is(err, queue.ErrDisposed):
		return Event{}, ErrClosed
	case err != nil:
		return Event{}, fmt.Errorf("poll events: %w", err)
	}
	if len(items) == 0 {
		return Event{}, ErrTimeout
	}
	return items[0].(Event), nil
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	return int(q.q.Len())
}

// Close releases the queue; blocked and future Polls return ErrClosed
func (q *Queue) Close() {
	q.q.Dispose()
}
