package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Output is a shell whose stdout is bound to a sink producing T. It is
// created with Bind and fixes the result type of the output operations.
type Output[T any] struct {
	sh   *Shell
	sink Sink[T]

	mu      sync.Mutex
	promise *Promise[T]
}

// Bind binds sink to the stdout of sh and returns the typed handle used
// to start the process and obtain the result. Binding a new sink replaces
// the previous one; handles created by earlier calls can no longer start
// the shell.
func Bind[T any](sh *Shell, sink Sink[T]) *Output[T] {
	o := &Output[T]{
		sh:   sh,
		sink: sink,
	}

	sh.configure(func() {
		sh.output = o
		sh.spec.Stdout = Stream{Redirect: Pipe}
	})

	return o
}

// outputStarter starts the consumption of stdout without exposing the
// type of the produced value.
type outputStarter interface {
	startFor(p *Process) (wait func() error, err error)
}

func (o *Output[T]) startFor(p *Process) (func() error, error) {
	promise, err := o.StartOutputFor(p)
	if err != nil {
		return nil, err
	}

	return func() error {
		_, err := promise.Wait()
		return err
	}, nil
}

// Shell returns the underlying shell.
func (o *Output[T]) Shell() *Shell {
	return o.sh
}

func (o *Output[T]) checkBound() error {
	o.sh.mu.Lock()
	defer o.sh.mu.Unlock()

	if o.sh.output != outputStarter(o) {
		return misuse("%s: stdout was bound to another sink", o.sh.spec)
	}

	return nil
}

// Start spawns the process like Shell.Start. The output is not consumed
// until StartOutputFor is called with the returned process.
func (o *Output[T]) Start(ctx context.Context) (*Process, error) {
	if err := o.checkBound(); err != nil {
		return nil, err
	}

	return o.sh.Start(ctx)
}

// StartOutput spawns the process and starts consuming its output. The
// returned promise resolves with the value produced by the sink.
func (o *Output[T]) StartOutput(ctx context.Context) (*Promise[T], error) {
	process, err := o.Start(ctx)
	if err != nil {
		return nil, err
	}

	return o.StartOutputFor(process)
}

// StartOutputFor starts consuming the output of a process previously
// returned by Start. It can be called only once.
func (o *Output[T]) StartOutputFor(p *Process) (*Promise[T], error) {
	if p == nil || p != o.sh.Process() {
		return nil, ErrNotStarted
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.promise != nil {
		return nil, fmt.Errorf("%w: output already started", ErrAlreadyStarted)
	}

	o.promise = NewPromise[T]()

	go o.collect(p, o.promise)

	return o.promise, nil
}

// collect drains stdout into the sink. The value delivered by the sink
// resolves the promise once the ancillary barrier has passed; ancillary
// failures reject it instead. Live sinks resolve it right away and wait
// for the barrier themselves.
func (o *Output[T]) collect(p *Process, promise *Promise[T]) {
	log := o.sh.log.With(zap.String("stream", "stdout"), zap.Int("pid", p.Pid()))

	var delivered atomic.Bool

	deliver := func(value T) {
		if !delivered.CompareAndSwap(false, true) {
			log.Warn("sink delivered more than once")
			return
		}

		// wait in the background, the sink may still be reading
		barrier := o.sh.ancillaryBarrier(p)

		go func() {
			if _, err := barrier.Wait(); err != nil {
				promise.Reject(err)
				return
			}

			promise.Resolve(value)
		}()
	}

	stdout := p.Stdout()
	if stdout == nil {
		var zero T
		deliver(zero)
		return
	}

	defer stdout.Close()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()

		live, ok := o.sink.(liveSink[T])
		if !ok {
			return o.sink.Drain(stdout, o.sh.Encoding(), deliver)
		}

		// the value is consumed while stdout is still open
		deliverNow := func(value T) {
			if delivered.CompareAndSwap(false, true) {
				promise.Resolve(value)
			}
		}

		barrier := func() error {
			_, err := o.sh.ancillaryBarrier(p).Wait()
			return err
		}

		return live.drainLive(stdout, o.sh.Encoding(), deliverNow, barrier)
	}()

	switch {
	case err != nil && delivered.Load():
		log.Warn("output transfer failed after delivery", zap.Error(err))
	case err != nil:
		log.Warn("output transfer failed", zap.Error(err))
		promise.Reject(&StreamError{Stream: "stdout", Err: err})
	case !delivered.Load():
		promise.Reject(&StreamError{Stream: "stdout", Err: ErrNoValue})
	default:
		log.Debug("output transfer finished")
	}
}

// StartAndGet spawns the process, waits for it to exit and returns the
// value produced by the sink.
func (o *Output[T]) StartAndGet(ctx context.Context) (T, error) {
	var zero T

	promise, err := o.StartOutput(ctx)
	if err != nil {
		return zero, err
	}

	process := o.sh.Process()

	if _, err := process.WaitContext(ctx); err != nil {
		return zero, err
	}

	return promise.Get(ctx)
}

// StartAndGetTimeout spawns the process and waits at most timeout units
// for it to exit and for the sink to produce its value. If the budget is
// exhausted first, an error wrapping ErrTimeout is returned. Unless the
// shell is configured to kill on timeout, the process keeps running and
// can be stopped through Shell.Process.
func (o *Output[T]) StartAndGetTimeout(ctx context.Context, timeout int64, unit TimeUnit) (T, error) {
	var zero T

	budget := unit.Duration(timeout)

	promise, err := o.StartOutput(ctx)
	if err != nil {
		return zero, err
	}

	process := o.sh.Process()

	begin := time.Now()

	process.WaitTimeout(budget)

	remaining := budget - time.Since(begin)

	if remaining <= 0 {
		if value, err, ok := promise.TryGet(); ok {
			return value, err
		}

		return zero, o.timeout(process, budget)
	}

	n, precision := waitPrecision(remaining)

	value, err := promise.GetTimeout(precision.Duration(n))
	if errors.Is(err, ErrTimeout) && !promise.IsDone() {
		return zero, o.timeout(process, budget)
	}

	return value, err
}

func (o *Output[T]) timeout(p *Process, budget time.Duration) error {
	if o.sh.cfg.KillOnTimeout {
		o.sh.log.Info("killing process after timeout", zap.Int("pid", p.Pid()))
		if err := p.Kill(-1); err != nil {
			o.sh.log.Warn("kill after timeout failed", zap.Error(err))
		}
	}

	return fmt.Errorf("%w: %s did not complete within %s", ErrTimeout, o.sh, budget)
}
