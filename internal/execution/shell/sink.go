package shell

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Sink consumes a stream of the process and produces a value of type T.
// Drain must call deliver at most once. Most sinks deliver after the
// stream is exhausted; streaming sinks deliver early and keep reading.
type Sink[T any] interface {
	Drain(r io.Reader, enc encoding.Encoding, deliver func(T)) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[T any] func(r io.Reader, enc encoding.Encoding, deliver func(T)) error

func (f SinkFunc[T]) Drain(r io.Reader, enc encoding.Encoding, deliver func(T)) error {
	return f(r, enc, deliver)
}

// FuncSink produces a value from the raw stream using fn. The value is
// delivered once fn returns without error.
func FuncSink[T any](fn func(r io.Reader) (T, error)) Sink[T] {
	return SinkFunc[T](func(r io.Reader, _ encoding.Encoding, deliver func(T)) error {
		value, err := fn(r)
		if err != nil {
			return err
		}

		deliver(value)
		return nil
	})
}

// LinesSink collects the decoded lines of the stream.
func LinesSink() Sink[[]string] {
	return SinkFunc[[]string](func(r io.Reader, enc encoding.Encoding, deliver func([]string)) error {
		lines := []string{}

		err := readLines(r, enc, func(line string) error {
			lines = append(lines, line)
			return nil
		})
		if err != nil {
			return err
		}

		deliver(lines)
		return nil
	})
}

// TextSink collects the whole decoded stream as a string.
func TextSink() Sink[string] {
	return SinkFunc[string](func(r io.Reader, enc encoding.Encoding, deliver func(string)) error {
		var sb strings.Builder
		if _, err := io.Copy(&sb, decodeReader(r, enc)); err != nil {
			return err
		}

		deliver(sb.String())
		return nil
	})
}

// BytesSink collects the raw bytes of the stream.
func BytesSink() Sink[[]byte] {
	return SinkFunc[[]byte](func(r io.Reader, _ encoding.Encoding, deliver func([]byte)) error {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			return err
		}

		deliver(buf.Bytes())
		return nil
	})
}

// WriterSink copies the raw stream into w and delivers w. If w is an
// io.Closer, it is closed once the stream is exhausted.
func WriterSink[W io.Writer](w W) Sink[W] {
	return SinkFunc[W](func(r io.Reader, _ encoding.Encoding, deliver func(W)) error {
		_, err := io.Copy(w, r)

		if closer, ok := any(w).(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}

		if err != nil {
			return err
		}

		deliver(w)
		return nil
	})
}

// FileSink writes the raw stream to the file at path, truncating it,
// and delivers the path.
func FileSink(path string) Sink[string] {
	return SinkFunc[string](func(r io.Reader, _ encoding.Encoding, deliver func(string)) error {
		if err := copyToFile(path, r); err != nil {
			return err
		}

		deliver(path)
		return nil
	})
}

// QueueSink delivers a new LineQueue right away and pushes each decoded
// line onto it as soon as it is read, followed by EndOfStream.
//
// Bound to the stdout of a shell, the queue is handed out before the
// ancillary tasks complete, and EndOfStream is pushed only once they
// have, so a consumer reaching the end also sees stderr fully drained.
func QueueSink(capacity int) Sink[*LineQueue] {
	return queueSink{capacity: capacity}
}

// liveSink is implemented by sinks whose value is consumed while the
// stream is still open. barrier blocks until the ancillary tasks of
// the process completed.
type liveSink[T any] interface {
	drainLive(r io.Reader, enc encoding.Encoding, deliver func(T), barrier func() error) error
}

type queueSink struct {
	capacity int
}

func (s queueSink) Drain(r io.Reader, enc encoding.Encoding, deliver func(*LineQueue)) error {
	q := NewLineQueue(s.capacity)
	deliver(q)

	return transferLines(r, enc, q)
}

func (s queueSink) drainLive(r io.Reader, enc encoding.Encoding, deliver func(*LineQueue), barrier func() error) error {
	q := NewLineQueue(s.capacity)
	deliver(q)

	err := readLines(r, enc, func(line string) error {
		q.Put(line)
		return nil
	})

	err = multierr.Append(err, barrier())
	q.Put(EndOfStream)

	return err
}

// StreamHandler consumes a stream that is not the primary output of the
// process, e.g. stderr.
type StreamHandler func(r io.Reader, enc encoding.Encoding) error

// Collect turns a sink into a stream handler that passes the produced
// value to fn.
func Collect[T any](sink Sink[T], fn func(T)) StreamHandler {
	return func(r io.Reader, enc encoding.Encoding) error {
		return sink.Drain(r, enc, fn)
	}
}

// LineHandler calls fn for every decoded line, followed by a final call
// with EndOfStream.
func LineHandler(fn func(string)) StreamHandler {
	return func(r io.Reader, enc encoding.Encoding) error {
		defer fn(EndOfStream)

		return readLines(r, enc, func(line string) error {
			fn(line)
			return nil
		})
	}
}

// QueueHandler pushes each decoded line onto q, followed by EndOfStream.
func QueueHandler(q *LineQueue) StreamHandler {
	return func(r io.Reader, enc encoding.Encoding) error {
		return transferLines(r, enc, q)
	}
}

// transferLines pushes the decoded lines of r onto q. EndOfStream is
// pushed last, also when reading fails.
func transferLines(r io.Reader, enc encoding.Encoding, q *LineQueue) error {
	defer q.Put(EndOfStream)

	return readLines(r, enc, func(line string) error {
		q.Put(line)
		return nil
	})
}

// readLines splits the decoded stream into lines. Line terminators ("\n"
// or "\r\n") are stripped, and a final unterminated line is kept.
func readLines(r io.Reader, enc encoding.Encoding, fn func(string) error) error {
	reader := bufio.NewReader(decodeReader(r, enc))

	for {
		line, err := reader.ReadString('\n')

		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func decodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}

	return transform.NewReader(r, enc.NewDecoder())
}

func copyToFile(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	buf := bufio.NewWriter(file)

	if _, err := io.Copy(buf, r); err != nil {
		file.Close()
		return err
	}

	if err := buf.Flush(); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}
