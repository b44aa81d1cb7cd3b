package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int
}

// ReturnCode returns the exit code of the process. For processes killed
// by a signal, it returns 128 plus the signal number, like a unix shell.
func (e ExitEvent) ReturnCode() int {
	if e.Code != nil {
		return *e.Code
	}

	if e.Signal != nil {
		return 128 + *e.Signal
	}

	return 1
}

// Process is a handle to a spawned child process.
type Process struct {
	pid  int
	cmd  *exec.Cmd
	done chan struct{}

	exit    ExitEvent
	waitErr error

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	group bool

	ancillaryLock sync.Mutex
	ancillary     []*Promise[struct{}]

	log *zap.Logger
}

func startProc(spec CommandSpec, group bool, log *zap.Logger) (*Process, error) {
	if len(spec.Args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(spec.Args[0], spec.Args[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Environ()

	process := &Process{
		cmd:   cmd,
		done:  make(chan struct{}),
		group: group,
	}

	var closeAfterStart, closeOnError []io.Closer

	closeAll := func(closers []io.Closer) {
		for _, c := range closers {
			c.Close()
		}
	}

	fail := func(err error) (*Process, error) {
		closeAll(closeAfterStart)
		closeAll(closeOnError)
		return nil, err
	}

	// stdin
	switch spec.Stdin.Redirect {
	case Inherit:
		cmd.Stdin = os.Stdin
	case Pipe:
		pr, pw, err := os.Pipe()
		if err != nil {
			return fail(err)
		}
		cmd.Stdin = pr
		process.stdin = pw
		closeAfterStart = append(closeAfterStart, pr)
		closeOnError = append(closeOnError, pw)
	case File:
		file, err := os.Open(spec.Stdin.Path)
		if err != nil {
			return fail(err)
		}
		cmd.Stdin = file
		closeAfterStart = append(closeAfterStart, file)
	}

	// stdout
	stdout, stdoutReader, err := openOutput(spec.Stdout, os.Stdout)
	if err != nil {
		return fail(err)
	}
	if stdout != nil {
		cmd.Stdout = stdout
		if stdout != os.Stdout {
			closeAfterStart = append(closeAfterStart, stdout)
		}
	}
	if stdoutReader != nil {
		process.stdout = stdoutReader
		closeOnError = append(closeOnError, stdoutReader)
	}

	// stderr
	if spec.MergeStderr {
		cmd.Stderr = cmd.Stdout
	} else {
		stderr, stderrReader, err := openOutput(spec.Stderr, os.Stderr)
		if err != nil {
			return fail(err)
		}
		if stderr != nil {
			cmd.Stderr = stderr
			if stderr != os.Stderr {
				closeAfterStart = append(closeAfterStart, stderr)
			}
		}
		if stderrReader != nil {
			process.stderr = stderrReader
			closeOnError = append(closeOnError, stderrReader)
		}
	}

	configureProcAttr(cmd, group)

	if err := cmd.Start(); err != nil {
		return fail(err)
	}

	// the child holds its own copies of the descriptors
	closeAll(closeAfterStart)

	process.pid = cmd.Process.Pid
	process.log = log.Named("proc").With(zap.Int("pid", process.pid))

	go func() {
		// block until the process exits
		err := cmd.Wait()

		process.exit = getExitEvent(err)

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			process.waitErr = err
		}

		process.log.Debug("process exited", zap.Int("code", process.exit.ReturnCode()))

		close(process.done)
	}()

	return process, nil
}

// openOutput returns the file the child writes to and, for piped
// streams, the read end the parent consumes.
func openOutput(stream Stream, inherit *os.File) (*os.File, io.ReadCloser, error) {
	switch stream.Redirect {
	case Inherit:
		return inherit, nil, nil
	case Pipe:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, nil, err
		}
		return pw, pr, nil
	case File:
		file, err := os.Create(stream.Path)
		if err != nil {
			return nil, nil, err
		}
		return file, nil, nil
	}

	// discard
	return nil, nil, nil
}

func (p *Process) Pid() int {
	return p.pid
}

// Done returns a channel that is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit event. The
// returned error is only set if the exit status could not be retrieved.
func (p *Process) Wait() (ExitEvent, error) {
	<-p.done
	return p.exit, p.waitErr
}

// WaitContext is like Wait, but returns early if the context is done.
func (p *Process) WaitContext(ctx context.Context) (ExitEvent, error) {
	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.done:
		return p.exit, p.waitErr
	}
}

// WaitTimeout waits up to timeout for the process to exit and reports
// whether it did. A timeout <= 0 does not block.
func (p *Process) WaitTimeout(timeout time.Duration) bool {
	if timeout <= 0 {
		return p.exited()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// ExitCode returns the exit code without blocking. The second return
// value is false if the process is still running.
func (p *Process) ExitCode() (int, bool) {
	if !p.exited() {
		return 0, false
	}

	return p.exit.ReturnCode(), true
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate asks the process to stop and waits up to timeout for it to
// exit. A timeout of 0 waits indefinitely, a negative one returns
// immediately.
func (p *Process) Terminate(timeout time.Duration) error {
	return p.stop(false, timeout)
}

// Kill forcefully stops the process and waits up to timeout for it to
// exit, with the same timeout semantics as Terminate.
func (p *Process) Kill(timeout time.Duration) error {
	return p.stop(true, timeout)
}

func (p *Process) stop(force bool, timeout time.Duration) error {
	// stopping should report success if the process
	// terminated by the time the request is received.
	if p.exited() {
		p.log.Debug("process already terminated")
		return nil
	}

	log := p.log.With(zap.Bool("force", force))

	log.Debug("sending signal")

	// best effort, ignore errors
	if err := p.signal(force); err != nil && !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
		log.Error("stop failed", zap.Error(err))
	}

	return p.waitForTermination(timeout)
}

func (p *Process) waitForTermination(timeout time.Duration) error {
	// if timeout is < 0, don't wait for the process to exit
	if timeout < 0 {
		return nil
	}

	// if timeout is 0, wait indefinitely
	if timeout == 0 {
		<-p.done
		return nil
	}

	if !p.WaitTimeout(timeout) {
		return ErrKillTimeout
	}

	return nil
}

// Stdin returns the write end of the stdin pipe, or nil if stdin is not
// piped. It is owned by the input feeder if an input source is bound.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout returns the read end of the stdout pipe, or nil if stdout is
// not piped. It is owned by the output task if an output sink is bound.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Stderr returns the read end of the stderr pipe, or nil if stderr is
// not piped. It is owned by the error collector if an error sink is bound.
func (p *Process) Stderr() io.ReadCloser {
	return p.stderr
}

// Ancillary returns the promises of the background tasks started
// alongside the process: input feeder, error collector and processors.
func (p *Process) Ancillary() []*Promise[struct{}] {
	p.ancillaryLock.Lock()
	defer p.ancillaryLock.Unlock()

	tasks := make([]*Promise[struct{}], len(p.ancillary))
	copy(tasks, p.ancillary)

	return tasks
}

func (p *Process) track(task *Promise[struct{}]) {
	p.ancillaryLock.Lock()
	defer p.ancillaryLock.Unlock()

	p.ancillary = append(p.ancillary, task)
}

// MARK: - Helpers

func getExitEvent(err error) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	var exitError *exec.ExitError

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if errors.As(err, &exitError) {
		// the process exited with an error
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			} else {
				// the process exited with an exit code
				cell = status.ExitStatus()
				exitStatus = &cell
			}
		} else if code := exitError.ExitCode(); code >= 0 {
			cell = code
			exitStatus = &cell
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
	}
}
