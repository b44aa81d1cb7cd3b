package shell

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Promise is a completion token that is resolved exactly once, either with
// a value or with an error. It is safe for concurrent use.
type Promise[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{
		done: make(chan struct{}),
	}
}

// Resolve completes the promise with the given value. It returns false if
// the promise was already completed.
func (p *Promise[T]) Resolve(value T) bool {
	return p.complete(value, nil)
}

// Reject completes the promise with the given error. It returns false if
// the promise was already completed.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.complete(zero, err)
}

func (p *Promise[T]) complete(value T, err error) bool {
	completed := false

	p.once.Do(func() {
		p.value = value
		p.err = err
		completed = true
		close(p.done)
	})

	return completed
}

// Done returns a channel that is closed once the promise is completed.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// IsDone reports whether the promise is completed.
func (p *Promise[T]) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// TryGet returns the result of the promise without blocking. The last
// return value is false if the promise is not completed yet.
func (p *Promise[T]) TryGet() (T, error, bool) {
	if !p.IsDone() {
		var zero T
		return zero, nil, false
	}

	return p.value, p.err, true
}

// Get blocks until the promise is completed or the context is done.
func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the promise is completed.
func (p *Promise[T]) Wait() (T, error) {
	<-p.done
	return p.value, p.err
}

// GetTimeout blocks until the promise is completed or the timeout elapses,
// in which case ErrTimeout is returned. A timeout <= 0 does not block.
func (p *Promise[T]) GetTimeout(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		if value, err, ok := p.TryGet(); ok {
			return value, err
		}

		var zero T
		return zero, ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.value, p.err
	case <-timer.C:
		var zero T
		return zero, ErrTimeout
	}
}

// AllOf returns a promise that completes once all given promises are
// completed. If any of them failed, the returned promise is rejected with
// all failures combined.
func AllOf[T any](promises ...*Promise[T]) *Promise[struct{}] {
	all := NewPromise[struct{}]()

	if len(promises) == 0 {
		all.Resolve(struct{}{})
		return all
	}

	go func() {
		var err error
		for _, p := range promises {
			if _, perr := p.Wait(); perr != nil {
				err = multierr.Append(err, perr)
			}
		}

		if err != nil {
			all.Reject(err)
			return
		}

		all.Resolve(struct{}{})
	}()

	return all
}
