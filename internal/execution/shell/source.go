package shell

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Source produces the bytes written to the stdin of a process. The shell
// closes stdin once Feed returns, which signals EOF to the child.
type Source interface {
	Feed(w io.Writer, enc encoding.Encoding) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(w io.Writer, enc encoding.Encoding) error

func (f SourceFunc) Feed(w io.Writer, enc encoding.Encoding) error {
	return f(w, enc)
}

// BytesSource writes the given bytes as is.
func BytesSource(data []byte) Source {
	return SourceFunc(func(w io.Writer, _ encoding.Encoding) error {
		if len(data) == 0 {
			return nil
		}

		_, err := w.Write(data)
		return err
	})
}

// StringSource writes the given text, encoded with the shell's encoding.
func StringSource(text string) Source {
	return SourceFunc(func(w io.Writer, enc encoding.Encoding) error {
		if text == "" {
			return nil
		}

		ew := encodeWriter(w, enc)
		if _, err := io.WriteString(ew, text); err != nil {
			return err
		}

		return ew.Close()
	})
}

// LinesSource writes each line followed by a newline.
func LinesSource(lines []string) Source {
	return SourceFunc(func(w io.Writer, enc encoding.Encoding) error {
		ew := encodeWriter(w, enc)
		buf := bufio.NewWriter(ew)

		for _, line := range lines {
			if _, err := buf.WriteString(line); err != nil {
				return err
			}

			if err := buf.WriteByte('\n'); err != nil {
				return err
			}
		}

		if err := buf.Flush(); err != nil {
			return err
		}

		return ew.Close()
	})
}

// ReaderSource copies everything from r. If r is an io.Closer, it is
// closed after the copy.
func ReaderSource(r io.Reader) Source {
	return SourceFunc(func(w io.Writer, _ encoding.Encoding) error {
		if closer, ok := r.(io.Closer); ok {
			defer closer.Close()
		}

		_, err := io.Copy(w, r)
		return err
	})
}

// FileSource copies the contents of the file at path.
func FileSource(path string) Source {
	return SourceFunc(func(w io.Writer, _ encoding.Encoding) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}

		defer file.Close()

		_, err = io.Copy(w, bufio.NewReader(file))
		return err
	})
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// encodeWriter wraps w in an encoder. Closing the returned writer flushes
// the encoder but leaves w open.
func encodeWriter(w io.Writer, enc encoding.Encoding) io.WriteCloser {
	if enc == nil {
		return nopWriteCloser{w}
	}

	return transform.NewWriter(w, enc.NewEncoder())
}
