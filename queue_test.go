package pulse

import (
	"strings"
	"testing"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := NewQueue()
	q.Enqueue(&pendingCall{method: "track"})

	dequeued, ok := q.Dequeue()
	if !ok || dequeued.method != "track" {
		t.Fatal("expected to dequeue call")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_Len(t *testing.T) {
	q := NewQueue()
	if q.Len() != 0 {
		t.Fatal("expected length 0")
	}
	q.Enqueue(&pendingCall{method: "track"})
	q.Enqueue(&pendingCall{method: "flush"})
	if q.Len() != 2 {
		t.Fatal("expected length 2")
	}
}

func TestQueue_Order(t *testing.T) {
	q := NewQueue()
	for _, m := range []string{"identify", "track", "flush"} {
		q.Enqueue(&pendingCall{method: m})
	}
	var got []string
	for {
		c, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, c.method)
	}
	if strings.Join(got, ",") != "identify,track,flush" {
		t.Fatalf("expected FIFO order, got %v", got)
	}
}

func TestQueue_Ready(t *testing.T) {
	q := NewQueue()
	q.Enqueue(&pendingCall{method: "a"})
	q.Enqueue(&pendingCall{method: "b"})

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected a ready signal")
	}
	select {
	case <-q.Ready():
		t.Fatal("expected signals to coalesce")
	default:
	}
}
