package pulse

import (
	"container/list"
	"sync"

	"github.com/google/uuid"

	"github.com/Tap30/pulse-go/value"
)

// pendingCall is a validated call waiting for the worker.
type pendingCall struct {
	id     uuid.UUID
	method string
	args   *value.Map
	future tracker
}

// Queue represents a thread-safe FIFO queue of pending calls.
type Queue struct {
	mu    sync.Mutex
	list  *list.List
	ready chan struct{}
}

// NewQueue creates and returns a new empty Queue.
func NewQueue() *Queue {
	return &Queue{list: list.New(), ready: make(chan struct{}, 1)}
}

// Enqueue adds a call to the end of the queue and wakes the worker.
func (q *Queue) Enqueue(c *pendingCall) {
	q.mu.Lock()
	q.list.PushBack(c)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the front call in the queue.
// It returns false if the queue is empty.
func (q *Queue) Dequeue() (*pendingCall, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.list.Len() == 0 {
		return nil, false
	}
	front := q.list.Front()
	q.list.Remove(front)
	return front.Value.(*pendingCall), true
}

// Ready receives a signal after Enqueue. One signal may stand for several
// calls, so the receiver drains with Dequeue.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of calls currently in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}
