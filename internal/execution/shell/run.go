package shell

import (
	"context"
	"io"

	"go.uber.org/multierr"
)

// RunToReturnCode starts the process, waits for it to exit and returns
// its exit code. A bound output sink is consumed and its result dropped;
// a piped but unbound stdout is discarded. Failures of the background
// tasks are returned alongside the exit code.
func (s *Shell) RunToReturnCode(ctx context.Context) (int, error) {
	process, err := s.Start(ctx)
	if err != nil {
		return 0, err
	}

	waitOutput := s.consumeOutput(process)

	exit, err := process.WaitContext(ctx)
	if err != nil {
		return 0, err
	}

	code := exit.ReturnCode()

	if err := waitOutput(); err != nil {
		return code, err
	}

	if _, err := s.ancillaryBarrier(process).Wait(); err != nil {
		return code, err
	}

	return code, nil
}

// StartToReturnCode starts the process and returns a promise that
// resolves with its exit code once the process has exited and its
// output has been consumed.
func (s *Shell) StartToReturnCode(ctx context.Context) (*Promise[int], error) {
	process, err := s.Start(ctx)
	if err != nil {
		return nil, err
	}

	waitOutput := s.consumeOutput(process)

	promise := NewPromise[int]()

	go func() {
		exit, err := process.Wait()
		if err != nil {
			promise.Reject(err)
			return
		}

		if err := multierr.Append(waitOutput(), barrierErr(s.ancillaryBarrier(process))); err != nil {
			promise.Reject(err)
			return
		}

		promise.Resolve(exit.ReturnCode())
	}()

	return promise, nil
}

// consumeOutput starts the bound output sink, or discards a piped
// stdout nobody consumes, so that the child cannot block on a full pipe.
func (s *Shell) consumeOutput(p *Process) func() error {
	s.mu.Lock()
	output := s.output
	s.mu.Unlock()

	if output != nil {
		wait, err := output.startFor(p)
		if err != nil {
			return func() error { return err }
		}

		return wait
	}

	stdout := p.Stdout()
	if stdout == nil {
		return func() error { return nil }
	}

	done := NewPromise[struct{}]()

	go func() {
		defer stdout.Close()

		if _, err := io.Copy(io.Discard, stdout); err != nil {
			done.Reject(&StreamError{Stream: "stdout", Err: err})
			return
		}

		done.Resolve(struct{}{})
	}()

	return func() error {
		_, err := done.Wait()
		return err
	}
}

func barrierErr(barrier *Promise[struct{}]) error {
	_, err := barrier.Wait()
	return err
}

// RunToLines runs the process and returns the decoded lines of stdout.
func (s *Shell) RunToLines(ctx context.Context) ([]string, error) {
	return Bind(s, LinesSink()).StartAndGet(ctx)
}

// RunToString runs the process and returns the decoded text of stdout.
func (s *Shell) RunToString(ctx context.Context) (string, error) {
	return Bind(s, TextSink()).StartAndGet(ctx)
}

// RunToBytes runs the process and returns the raw bytes of stdout.
func (s *Shell) RunToBytes(ctx context.Context) ([]byte, error) {
	return Bind(s, BytesSink()).StartAndGet(ctx)
}

// RunToLinesQueue starts the process and returns the queue its stdout
// lines are pushed onto. It does not wait for the process to exit, as
// the bounded queue must be drained by the caller.
func (s *Shell) RunToLinesQueue(ctx context.Context) (*LineQueue, error) {
	promise, err := s.StartToLinesQueue(ctx)
	if err != nil {
		return nil, err
	}

	return promise.Get(ctx)
}

// StartToLines starts the process, waits for it to exit and returns the
// promise of its stdout lines.
func (s *Shell) StartToLines(ctx context.Context) (*Promise[[]string], error) {
	return startAndWaitExit(ctx, Bind(s, LinesSink()))
}

// StartToString starts the process, waits for it to exit and returns the
// promise of its stdout text.
func (s *Shell) StartToString(ctx context.Context) (*Promise[string], error) {
	return startAndWaitExit(ctx, Bind(s, TextSink()))
}

// StartToBytes starts the process, waits for it to exit and returns the
// promise of its raw stdout.
func (s *Shell) StartToBytes(ctx context.Context) (*Promise[[]byte], error) {
	return startAndWaitExit(ctx, Bind(s, BytesSink()))
}

// StartToLinesQueue starts the process and returns the promise of the
// queue its stdout lines are pushed onto. The promise resolves as soon as
// the queue exists. While the shell waits for ancillary tasks,
// EndOfStream is pushed only after they completed.
func (s *Shell) StartToLinesQueue(ctx context.Context) (*Promise[*LineQueue], error) {
	return Bind(s, QueueSink(s.cfg.QueueCapacity)).StartOutput(ctx)
}

func startAndWaitExit[T any](ctx context.Context, o *Output[T]) (*Promise[T], error) {
	promise, err := o.StartOutput(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := o.Shell().Process().WaitContext(ctx); err != nil {
		return nil, err
	}

	return promise, nil
}
