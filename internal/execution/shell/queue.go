package shell

import (
	"context"
	"time"
)

// EndOfStream is pushed onto a LineQueue after the last line of a stream.
// Decoded lines never contain a newline, so it cannot collide with data.
const EndOfStream = "\n"

const defaultQueueCapacity = 100

// LineQueue is a bounded queue of lines. Producers block while the queue
// is full, which applies backpressure to the child process.
type LineQueue struct {
	ch chan string
}

func NewLineQueue(capacity int) *LineQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	return &LineQueue{
		ch: make(chan string, capacity),
	}
}

// Put appends a line, blocking while the queue is full.
func (q *LineQueue) Put(line string) {
	q.ch <- line
}

// PutContext appends a line, blocking while the queue is full or until
// the context is done.
func (q *LineQueue) PutContext(ctx context.Context, line string) error {
	select {
	case q.ch <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take removes the next line, blocking while the queue is empty.
func (q *LineQueue) Take() string {
	return <-q.ch
}

// Poll removes the next line, waiting up to timeout for one to arrive.
// It returns false if the timeout elapsed.
func (q *LineQueue) Poll(timeout time.Duration) (string, bool) {
	if timeout <= 0 {
		select {
		case line := <-q.ch:
			return line, true
		default:
			return "", false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-q.ch:
		return line, true
	case <-timer.C:
		return "", false
	}
}

func (q *LineQueue) Len() int {
	return len(q.ch)
}

func (q *LineQueue) Cap() int {
	return cap(q.ch)
}

// ForEachLine calls fn for every line until EndOfStream is taken.
func ForEachLine(q *LineQueue, fn func(string)) {
	for {
		line := q.Take()
		if line == EndOfStream {
			return
		}

		fn(line)
	}
}

// ForEachLineContext is like ForEachLine, but returns the context error
// if the context is done before EndOfStream is reached.
func ForEachLineContext(ctx context.Context, q *LineQueue, fn func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-q.ch:
			if line == EndOfStream {
				return nil
			}

			fn(line)
		}
	}
}

// ForEachLinePoll calls fn for every line until EndOfStream is taken.
// Each line is awaited for at most timeout units. It returns false if
// a wait timed out before EndOfStream was reached.
func ForEachLinePoll(q *LineQueue, fn func(string), timeout int64, unit TimeUnit) bool {
	wait := unit.Duration(timeout)

	for {
		line, ok := q.Poll(wait)
		if !ok {
			return false
		}

		if line == EndOfStream {
			return true
		}

		fn(line)
	}
}
