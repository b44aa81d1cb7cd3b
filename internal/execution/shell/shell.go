package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Processor is an extra task run against the live process.
type Processor func(p *Process) error

// Shell describes a single invocation of an external process together
// with the sources and sinks attached to its standard streams. It is
// configured through its fluent methods and started at most once.
type Shell struct {
	mu sync.Mutex

	spec          CommandSpec
	enc           encoding.Encoding
	waitAncillary bool

	input        Source
	errorHandler StreamHandler
	processors   []Processor

	// output is the handle of the most recently bound output sink
	output outputStarter

	started bool
	process *Process

	cfg Config
	id  string
	log *zap.Logger
}

// New creates a shell for the given command with the default config.
func New(log *zap.Logger, args ...string) *Shell {
	return NewWithConfig(DefaultConfig, log, args...)
}

// NewWithConfig creates a shell for the given command.
func NewWithConfig(cfg Config, log *zap.Logger, args ...string) *Shell {
	if log == nil {
		log = zap.NewNop()
	}

	id := uuid.NewString()
	log = log.Named("shell").With(zap.String("run_id", id))

	enc, err := LookupEncoding(cfg.Encoding)
	if err != nil {
		log.Warn("falling back to utf-8", zap.Error(err))
		enc = unicode.UTF8
	}

	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}

	return &Shell{
		spec: CommandSpec{
			Args: append([]string(nil), args...),
		},
		enc:           enc,
		waitAncillary: cfg.WaitAncillary,
		cfg:           cfg,
		id:            id,
		log:           log,
	}
}

func (s *Shell) String() string {
	return "Shell(" + s.EchoString() + ")"
}

// ID returns the identifier of the shell, used in log messages.
func (s *Shell) ID() string {
	return s.id
}

// Snapshot returns a copy of the command description.
func (s *Shell) Snapshot() CommandSpec {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spec.clone()
}

// Process returns the process started by the shell, or nil.
func (s *Shell) Process() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.process
}

// configure runs fn with the shell locked. Configuring a shell that has
// already been started is a programming error.
func (s *Shell) configure(fn func()) *Shell {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		panic(misuse("%s: cannot configure a started shell", s.spec))
	}

	fn()

	return s
}

// MARK: - Command

// Args appends arguments to the command.
func (s *Shell) Args(args ...string) *Shell {
	return s.configure(func() {
		s.spec.Args = append(s.spec.Args, args...)
	})
}

// Dir sets the working directory of the process.
func (s *Shell) Dir(dir string) *Shell {
	return s.configure(func() {
		s.spec.Dir = dir
	})
}

// Env sets a variable in the environment overlay.
func (s *Shell) Env(key, value string) *Shell {
	return s.configure(func() {
		if s.spec.Env == nil {
			s.spec.Env = map[string]string{}
		}
		s.spec.Env[key] = value
	})
}

// EnvMap sets all variables of env in the environment overlay.
func (s *Shell) EnvMap(env map[string]string) *Shell {
	return s.configure(func() {
		if s.spec.Env == nil {
			s.spec.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			s.spec.Env[k] = v
		}
	})
}

// SetEncoding sets the charset used for text sources and sinks.
func (s *Shell) SetEncoding(enc encoding.Encoding) *Shell {
	return s.configure(func() {
		s.enc = enc
	})
}

// Encoding returns the charset used for text sources and sinks.
func (s *Shell) Encoding() encoding.Encoding {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.enc
}

// WaitAncillary controls whether the output promise waits for the other
// background tasks before it resolves. Enabled by default.
func (s *Shell) WaitAncillary(wait bool) *Shell {
	return s.configure(func() {
		s.waitAncillary = wait
	})
}

// MARK: - Redirects

// RedirectToInherit connects all three streams to the streams of the
// current process.
func (s *Shell) RedirectToInherit() *Shell {
	return s.configure(func() {
		s.checkUnbound("stdin", s.input != nil)
		s.checkUnbound("stdout", s.output != nil)
		s.checkUnbound("stderr", s.errorHandler != nil)

		s.spec.Stdin = Stream{Redirect: Inherit}
		s.spec.Stdout = Stream{Redirect: Inherit}
		s.spec.Stderr = Stream{Redirect: Inherit}
	})
}

// RedirectInput sets the policy of stdin. Use Pipe to write to the
// process manually through Process.Stdin.
func (s *Shell) RedirectInput(redirect Redirect) *Shell {
	return s.configure(func() {
		s.checkUnbound("stdin", s.input != nil && redirect != Pipe)
		s.spec.Stdin = Stream{Redirect: redirect}
	})
}

// RedirectOutput sets the policy of stdout. Use Pipe to read from the
// process manually through Process.Stdout.
func (s *Shell) RedirectOutput(redirect Redirect) *Shell {
	return s.configure(func() {
		s.checkUnbound("stdout", s.output != nil && redirect != Pipe)
		s.spec.Stdout = Stream{Redirect: redirect}
	})
}

// RedirectError sets the policy of stderr. Use Pipe to read from the
// process manually through Process.Stderr.
func (s *Shell) RedirectError(redirect Redirect) *Shell {
	return s.configure(func() {
		s.checkUnbound("stderr", s.errorHandler != nil && redirect != Pipe)
		s.spec.Stderr = Stream{Redirect: redirect}
		s.spec.MergeStderr = false
	})
}

// RedirectInputFromFile connects stdin to the file at path.
func (s *Shell) RedirectInputFromFile(path string) *Shell {
	return s.configure(func() {
		s.checkUnbound("stdin", s.input != nil)
		s.spec.Stdin = Stream{Redirect: File, Path: path}
	})
}

// RedirectOutputToFile connects stdout to the file at path.
func (s *Shell) RedirectOutputToFile(path string) *Shell {
	return s.configure(func() {
		s.checkUnbound("stdout", s.output != nil)
		s.spec.Stdout = Stream{Redirect: File, Path: path}
	})
}

// RedirectErrorToFile connects stderr to the file at path.
func (s *Shell) RedirectErrorToFile(path string) *Shell {
	return s.configure(func() {
		s.checkUnbound("stderr", s.errorHandler != nil)
		s.spec.Stderr = Stream{Redirect: File, Path: path}
		s.spec.MergeStderr = false
	})
}

// MergeStderr sends stderr to wherever stdout goes.
func (s *Shell) MergeStderr() *Shell {
	return s.configure(func() {
		s.checkUnbound("stderr", s.errorHandler != nil)
		s.spec.MergeStderr = true
	})
}

func (s *Shell) checkUnbound(stream string, bound bool) {
	if bound {
		panic(misuse("%s: %s is bound to a sink or source", s.spec, stream))
	}
}

// MARK: - Input

// SetInput binds the source written to stdin, replacing any previously
// bound source.
func (s *Shell) SetInput(source Source) *Shell {
	return s.configure(func() {
		s.input = source
		s.spec.Stdin = Stream{Redirect: Pipe}
	})
}

func (s *Shell) SetInputBytes(data []byte) *Shell {
	return s.SetInput(BytesSource(data))
}

func (s *Shell) SetInputString(text string) *Shell {
	return s.SetInput(StringSource(text))
}

func (s *Shell) SetInputLines(lines []string) *Shell {
	return s.SetInput(LinesSource(lines))
}

func (s *Shell) SetInputReader(r io.Reader) *Shell {
	return s.SetInput(ReaderSource(r))
}

func (s *Shell) SetInputFile(path string) *Shell {
	return s.SetInput(FileSource(path))
}

// MARK: - Error

// SetError binds the handler consuming stderr, replacing any previously
// bound handler. Binding a handler while stderr is merged into stdout
// is a programming error.
func (s *Shell) SetError(handler StreamHandler) *Shell {
	return s.configure(func() {
		if s.spec.MergeStderr {
			panic(misuse("%s: stderr is merged into stdout", s.spec))
		}
		s.errorHandler = handler
		s.spec.Stderr = Stream{Redirect: Pipe}
	})
}

// SetErrorLines passes the decoded lines of stderr to fn.
func (s *Shell) SetErrorLines(fn func([]string)) *Shell {
	return s.SetError(Collect(LinesSink(), fn))
}

// SetErrorString passes the decoded text of stderr to fn.
func (s *Shell) SetErrorString(fn func(string)) *Shell {
	return s.SetError(Collect(TextSink(), fn))
}

// SetErrorBytes passes the raw bytes of stderr to fn.
func (s *Shell) SetErrorBytes(fn func([]byte)) *Shell {
	return s.SetError(Collect(BytesSink(), fn))
}

// SetErrorWriter copies stderr into w.
func (s *Shell) SetErrorWriter(w io.Writer) *Shell {
	return s.SetError(Collect(WriterSink(w), func(io.Writer) {}))
}

// SetErrorFile copies stderr into the file at path.
func (s *Shell) SetErrorFile(path string) *Shell {
	return s.SetError(Collect(FileSink(path), func(string) {}))
}

// SetErrorLine passes every decoded line of stderr to fn, followed by a
// final EndOfStream.
func (s *Shell) SetErrorLine(fn func(string)) *Shell {
	return s.SetError(LineHandler(fn))
}

// SetErrorLinesQueue pushes the decoded lines of stderr onto q, followed
// by EndOfStream.
func (s *Shell) SetErrorLinesQueue(q *LineQueue) *Shell {
	return s.SetError(QueueHandler(q))
}

// AddProcessor registers an extra task that runs against the live
// process once it is started.
func (s *Shell) AddProcessor(p Processor) *Shell {
	return s.configure(func() {
		s.processors = append(s.processors, p)
	})
}

// NewLineQueue creates a queue with the capacity configured for the shell.
func (s *Shell) NewLineQueue() *LineQueue {
	return NewLineQueue(s.cfg.QueueCapacity)
}

// MARK: - Echo

// EchoString returns the command line.
func (s *Shell) EchoString() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.spec.String()
}

// EchoStringWith returns the command line between before and after.
func (s *Shell) EchoStringWith(before, after string) string {
	return before + s.EchoString() + after
}

// Echo writes the command line to the diagnostic stream.
func (s *Shell) Echo() *Shell {
	return s.EchoWith(s.cfg.EchoPrefix, "")
}

// EchoWith writes the command line between before and after to the
// diagnostic stream.
func (s *Shell) EchoWith(before, after string) *Shell {
	w := s.cfg.EchoWriter
	if w == nil {
		w = os.Stderr
	}

	if _, err := fmt.Fprintln(w, s.EchoStringWith(before, after)); err != nil {
		s.log.Warn("echo failed", zap.Error(err))
	}

	return s
}

// MARK: - Start

// Start spawns the process and launches a background task for the bound
// input source, the bound error handler and every processor. Failures to
// spawn are returned as *SpawnError. The process is killed if ctx is
// done before it exits.
func (s *Shell) Start(ctx context.Context) (*Process, error) {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}

	s.started = true

	spec := s.spec.clone()
	enc := s.enc
	input := s.input
	errorHandler := s.errorHandler
	processors := append([]Processor(nil), s.processors...)

	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Args: spec.Args, Err: err}
	}

	log := s.log.With(
		zap.Strings("args", spec.Args),
		zap.String("dir", spec.Dir),
		zap.Any("env", spec.Env),
	)

	if s.cfg.Debug {
		log.Info("starting process",
			zap.Stringer("stdin", spec.Stdin.Redirect),
			zap.Stringer("stdout", spec.Stdout.Redirect),
			zap.Stringer("stderr", spec.Stderr.Redirect),
			zap.Bool("merge_stderr", spec.MergeStderr),
		)
	} else {
		log.Debug("starting process")
	}

	process, err := startProc(spec, s.cfg.ProcessGroup, s.log)
	if err != nil {
		log.Debug("failed to start process", zap.Error(err))
		return nil, &SpawnError{Args: spec.Args, Err: err}
	}

	s.mu.Lock()
	s.process = process
	s.mu.Unlock()

	// kill the process if the context is cancelled before it exits
	if ctx.Done() != nil {
		go func() {
			select {
			case <-process.Done():
			case <-ctx.Done():
				process.Kill(-1)
			}
		}()
	}

	if input != nil {
		s.spawnTask(process, "stdin", func() error {
			defer process.stdin.Close()

			err := input.Feed(process.stdin, enc)
			if errors.Is(err, syscall.EPIPE) {
				// the child closed stdin before reading everything
				s.log.Debug("stdin closed by process", zap.Error(err))
				return nil
			}

			return err
		})
	}

	if errorHandler != nil {
		s.spawnTask(process, "stderr", func() error {
			defer process.stderr.Close()
			return errorHandler(process.stderr, enc)
		})
	}

	for _, prc := range processors {
		s.spawnTask(process, "processor", func() error {
			return prc(process)
		})
	}

	return process, nil
}

// spawnTask runs fn in the background and registers its promise with the
// ancillary tasks of the process.
func (s *Shell) spawnTask(p *Process, stream string, fn func() error) {
	task := NewPromise[struct{}]()
	p.track(task)

	log := s.log.With(zap.String("stream", stream), zap.Int("pid", p.Pid()))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("task panicked", zap.Any("panic", r))
				task.Reject(&StreamError{Stream: stream, Err: fmt.Errorf("panic: %v", r)})
			}
		}()

		if err := fn(); err != nil {
			log.Warn("task failed", zap.Error(err))
			task.Reject(&StreamError{Stream: stream, Err: err})
			return
		}

		log.Debug("task finished")
		task.Resolve(struct{}{})
	}()
}

// ancillaryBarrier returns a promise that resolves once every ancillary
// task of p has completed, or an already resolved promise if the shell
// does not wait for ancillary tasks.
func (s *Shell) ancillaryBarrier(p *Process) *Promise[struct{}] {
	s.mu.Lock()
	wait := s.waitAncillary
	s.mu.Unlock()

	if !wait {
		return AllOf[struct{}]()
	}

	return AllOf(p.Ancillary()...)
}

