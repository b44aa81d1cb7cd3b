package shell

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Redirect is the policy of a single standard stream of the child.
type Redirect int

const (
	// Discard connects the stream to the null device
	Discard Redirect = iota
	// Inherit connects the stream to the stream of the current process
	Inherit
	// Pipe connects the stream to a pipe consumed by the shell
	Pipe
	// File connects the stream to a file
	File
)

func (r Redirect) String() string {
	switch r {
	case Discard:
		return "discard"
	case Inherit:
		return "inherit"
	case Pipe:
		return "pipe"
	case File:
		return "file"
	}

	return fmt.Sprintf("Redirect(%d)", int(r))
}

// ParseRedirect parses a redirect policy name.
func ParseRedirect(s string) (Redirect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "discard":
		return Discard, nil
	case "inherit":
		return Inherit, nil
	case "pipe":
		return Pipe, nil
	case "file":
		return File, nil
	}

	return Discard, fmt.Errorf("unknown redirect %q", s)
}

// Stream describes where a standard stream of the child is connected to.
type Stream struct {
	Redirect Redirect

	// Path is the file used by the File policy
	Path string
}

// CommandSpec is a read-only description of the process to spawn.
type CommandSpec struct {
	// Args is the argument vector, the first element is the executable
	Args []string

	// Dir is the working directory, empty for the current one
	Dir string

	// Env is the environment overlay, merged over the environment of
	// the current process
	Env map[string]string

	Stdin  Stream
	Stdout Stream
	Stderr Stream

	// MergeStderr redirects stderr to wherever stdout goes
	MergeStderr bool
}

// Environ returns the environment of the child in "key=value" form, or
// nil if there is no overlay and the child inherits the environment.
func (c CommandSpec) Environ() []string {
	if len(c.Env) == 0 {
		return nil
	}

	return mergeEnv(os.Environ(), c.Env)
}

func (c CommandSpec) String() string {
	return strings.Join(c.Args, " ")
}

func (c CommandSpec) clone() CommandSpec {
	c.Args = append([]string(nil), c.Args...)

	if c.Env != nil {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		c.Env = env
	}

	return c
}

// mergeEnv overlays env over base. Existing keys keep their position,
// new keys are appended in sorted order.
func mergeEnv(base []string, env map[string]string) []string {
	merged := make([]string, 0, len(base)+len(env))
	seen := make(map[string]bool, len(env))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if value, ok := env[key]; ok {
			if !seen[key] {
				merged = append(merged, key+"="+value)
				seen[key] = true
			}
			continue
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		merged = append(merged, key+"="+env[key])
	}

	return merged
}
