package eventqueue

import (
	"testing"
	"time"
)

func TestQueueOrderPreserved(t *testing.T) {
	q := New[int]()
	const n = 1000
	// The producer never blocks, even with nobody draining yet.
	for i := 0; i < n; i++ {
		select {
		case q.In() <- i:
		case <-time.After(time.Second):
			t.Fatalf("send %d blocked", i)
		}
	}
	close(q.In())
	i := 0
	for v := range q.Out() {
		if v != i {
			t.Fatalf("element %d = %d, want %d", i, v, i)
		}
		i++
	}
	if i != n {
		t.Errorf("drained %d elements, want %d", i, n)
	}
}

func TestQueueCloseEmpty(t *testing.T) {
	q := New[string]()
	close(q.In())
	select {
	case _, ok := <-q.Out():
		if ok {
			t.Error("empty queue delivered an element after close")
		}
	case <-time.After(time.Second):
		t.Error("Out was not closed")
	}
}

func TestQueueInterleaved(t *testing.T) {
	q := New[int]()
	go func() {
		for i := 0; i < 100; i++ {
			q.In() <- i
		}
		close(q.In())
	}()
	want := 0
	for v := range q.Out() {
		if v != want {
			t.Fatalf("got %d, want %d", v, want)
		}
		want++
	}
}
