// Package eventqueue provides an unbounded FIFO with channel endpoints.
// benchacq uses it to decouple the acquisition goroutine from subscribers
// of configuration-change events: the producer side never blocks, however
// slowly a subscriber drains its events.
package eventqueue

// Queue is an unbounded queue fed and drained through channels. Prefer
// small element types; use pointers for large ones.
type Queue[T any] struct {
	in    chan T
	out   chan T
	queue []T
}

// New creates a Queue and starts its pump goroutine. Closing In() drains
// the remaining elements to Out() and then closes it.
func New[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

func (q *Queue[T]) pump() {
	for {
		if len(q.queue) == 0 {
			val, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			q.queue = append(q.queue, val)
			continue
		}
		select {
		case q.out <- q.queue[0]:
			q.queue = q.queue[1:]
		case val, ok := <-q.in:
			if !ok {
				for _, item := range q.queue {
					q.out <- item
				}
				close(q.out)
				return
			}
			q.queue = append(q.queue, val)
		}
	}
}

// In returns the channel elements are sent on.
func (q *Queue[T]) In() chan<- T { return q.in }

// Out returns the channel elements are received from.
func (q *Queue[T]) Out() <-chan T { return q.out }
