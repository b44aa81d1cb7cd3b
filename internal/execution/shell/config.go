package shell

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Config describes the behaviour shared by all shells created with it.
type Config struct {
	// WaitAncillary makes the output promise wait for the input feeder,
	// the error collector and extra processors before it resolves.
	WaitAncillary bool `conf:"wait_ancillary"`

	// QueueCapacity is the capacity of line queues created by the shell
	QueueCapacity int `conf:"queue_capacity"`

	// KillOnTimeout kills the child process when a bounded wait expires.
	// By default, the process is left running and the caller may
	// terminate it using the process handle.
	KillOnTimeout bool `conf:"kill_on_timeout"`

	// ProcessGroup starts the child in its own process group, so that
	// Terminate and Kill signal the whole group. Leave disabled for
	// children that read from an inherited terminal.
	ProcessGroup bool `conf:"process_group"`

	// EchoPrefix is written before the command line by Echo
	EchoPrefix string `conf:"echo_prefix"`

	// Encoding is the charset used to encode text input and decode text
	// output, e.g. "utf-8" or "iso-8859-1".
	Encoding string `conf:"encoding"`

	// Debug enables verbose logging of the shell lifecycle
	Debug bool `conf:"debug"`

	// EchoWriter is the diagnostic stream Echo writes to. Defaults to
	// os.Stderr.
	EchoWriter io.Writer `conf:"-"`
}

var DefaultConfig = Config{
	WaitAncillary: true,
	QueueCapacity: 100,
	EchoPrefix:    "> ",
	Encoding:      "utf-8",
}

// LookupEncoding returns the encoding registered under the given name.
// An empty name returns UTF-8.
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}

	return enc, nil
}
