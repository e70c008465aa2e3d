package relay

import (
	"fmt"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		q.Push([]byte(fmt.Sprint(i)))
	}

	for i := 0; i < 3; i++ {
		seq, data, ok := q.Peek()
		if !ok {
			t.Fatalf("expected entry %d", i)
		}
		if string(data) != fmt.Sprint(i) {
			t.Fatalf("expected %d, got %s", i, data)
		}
		q.Ack(seq)
	}
	if _, _, ok := q.Peek(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	if q.Push([]byte("a")) || q.Push([]byte("b")) {
		t.Fatal("no drop expected below capacity")
	}
	if !q.Push([]byte("c")) {
		t.Fatal("expected drop at capacity")
	}
	if q.Len() != 2 || q.Dropped() != 1 {
		t.Fatalf("expected len 2 dropped 1, got %d %d", q.Len(), q.Dropped())
	}
	_, data, _ := q.Peek()
	if string(data) != "b" {
		t.Fatalf("expected oldest survivor b, got %s", data)
	}
}

func TestQueueAckIgnoresStaleSequence(t *testing.T) {
	q := NewQueue(1)
	q.Push([]byte("a"))
	seq, _, _ := q.Peek()

	// "a" is dropped while the sink is writing it.
	q.Push([]byte("b"))
	q.Ack(seq)

	_, data, ok := q.Peek()
	if !ok || string(data) != "b" {
		t.Fatalf("ack of a dropped entry must not remove its successor, got %q %v", data, ok)
	}
}

func TestQueueNotify(t *testing.T) {
	q := NewQueue(8)
	select {
	case <-q.Notify():
		t.Fatal("no notification expected before a push")
	default:
	}

	q.Push([]byte("a"))
	q.Push([]byte("b"))
	select {
	case <-q.Notify():
	default:
		t.Fatal("expected a notification after push")
	}
	select {
	case <-q.Notify():
		t.Fatal("pushes should coalesce into one notification")
	default:
	}
}
