package shell

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout        = fmt.Errorf("timeout")
	ErrKillTimeout    = fmt.Errorf("kill timeout")
	ErrAlreadyStarted = fmt.Errorf("shell already started")
	ErrNotStarted     = fmt.Errorf("shell not started")
	ErrSinkMisuse     = fmt.Errorf("sink misuse")
	ErrNoValue        = fmt.Errorf("sink finished without delivering a value")
	ErrEmptyCommand   = fmt.Errorf("empty command")
)

// SpawnError is returned when the process could not be started, e.g.
// because the executable does not exist or the directory is invalid.
type SpawnError struct {
	Args []string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %s", strings.Join(e.Args, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// StreamError is captured on the promise of a transfer task that failed
// while copying bytes from or to one of the process streams.
type StreamError struct {
	// Stream is one of "stdin", "stdout", "stderr" or "processor"
	Stream string

	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s transfer failed: %s", e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsSpawnError reports whether err was caused by a failed process spawn.
func IsSpawnError(err error) bool {
	var spawnErr *SpawnError
	return errors.As(err, &spawnErr)
}

// IsStreamError reports whether err was caused by a failed stream transfer.
func IsStreamError(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr)
}

func misuse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSinkMisuse, fmt.Sprintf(format, args...))
}
