package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/urfave/cli/v2"
)

// commandFlags are shared by all commands that assemble a process.
var commandFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "dir",
		Usage:    "the working directory of the process.",
		Category: "process",
		EnvVars:  []string{"PROCSHELL_DIR"},
	},
	&cli.StringSliceFlag{
		Name:     "env",
		Usage:    "set an environment variable of the process, as KEY=VALUE.",
		Category: "process",
	},
	&cli.StringSliceFlag{
		Name:     "env-file",
		Usage:    "load environment variables of the process from a dotenv file.",
		Category: "process",
	},
	&cli.StringFlag{
		Name:     "log-level-var",
		Usage:    "the variable carrying the log options of the process, e.g. MAVEN_OPTS.",
		Category: "process",
	},
	&cli.StringFlag{
		Name:     "child-log-level",
		Usage:    "the log level set in the log options of the process.",
		Category: "process",
	},
	&cli.BoolFlag{
		Name:     "debug",
		Usage:    "log the process lifecycle and export the command creation time.",
		Category: "process",
	},
	&cli.BoolFlag{
		Name:     "process-group",
		Usage:    "start the process in its own process group.",
		Category: "process",
	},
	&cli.StringFlag{
		Name:     "encoding",
		Usage:    "the charset of the process input and output.",
		Category: "streams",
	},
	&cli.PathFlag{
		Name:     "input-file",
		Usage:    "feed the given file to the standard input of the process.",
		Category: "streams",
	},
	&cli.StringFlag{
		Name:     "input",
		Usage:    "feed the given text to the standard input of the process.",
		Category: "streams",
	},
	&cli.BoolFlag{
		Name:     "merge-stderr",
		Usage:    "merge the standard error into the standard output of the process.",
		Category: "streams",
	},
	&cli.BoolFlag{
		Name:     "wait-ancillary",
		Usage:    "wait for input and error streams before reporting the output.",
		Value:    true,
		Category: "streams",
	},
	&cli.BoolFlag{
		Name:     "echo",
		Usage:    "print the command line before running it.",
		Category: "streams",
	},
	&cli.StringFlag{
		Name:     "echo-prefix",
		Usage:    "the text printed before the echoed command line.",
		Category: "streams",
	},
	&cli.Int64Flag{
		Name:     "timeout",
		Usage:    "wait at most the given number of time units for the process. 0 waits indefinitely.",
		Category: "timeout",
	},
	&cli.StringFlag{
		Name:     "timeout-unit",
		Usage:    "the unit of the timeout. Options: ns, us, ms, s, m, h, d.",
		Value:    "s",
		Category: "timeout",
	},
	&cli.BoolFlag{
		Name:     "kill-on-timeout",
		Usage:    "kill the process when the timeout expires.",
		Category: "timeout",
	},
}

// configKeys maps cli flag names to config keys
var configKeys = map[string]string{
	"dir":             "launch.dir",
	"env-file":        "launch.env_files",
	"log-level-var":   "launch.log_level_var",
	"child-log-level": "launch.log_level",
	"debug":           "shell.debug",
	"process-group":   "shell.process_group",
	"encoding":        "shell.encoding",
	"wait-ancillary":  "shell.wait_ancillary",
	"echo-prefix":     "shell.echo_prefix",
	"kill-on-timeout": "shell.kill_on_timeout",
}

// newShell assembles the shell for the command line arguments of ctx.
func newShell(ctx *cli.Context, launcher *launch.Launcher) (*shell.Shell, error) {
	args := ctx.Args().Slice()
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no command given", shell.ErrEmptyCommand)
	}

	env, err := parseEnv(ctx.StringSlice("env"))
	if err != nil {
		return nil, err
	}

	sh, err := launcher.Command(args, env)
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("input-file") {
		sh.SetInputFile(ctx.Path("input-file"))
	} else if ctx.IsSet("input") {
		sh.SetInputString(ctx.String("input"))
	}

	if ctx.Bool("merge-stderr") {
		sh.MergeStderr()
	}

	return sh, nil
}

// echo prints the command line of sh if requested.
func echo(ctx *cli.Context, sh *shell.Shell) {
	if ctx.Bool("echo") {
		sh.Echo()
	}
}

func parseEnv(vars []string) (map[string]string, error) {
	env := make(map[string]string, len(vars))

	for _, v := range vars {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected KEY=VALUE", v)
		}
		env[key] = value
	}

	return env, nil
}

// timeout returns the bounded wait requested on the command line, or
// false if the process is waited for indefinitely.
func timeout(ctx *cli.Context) (int64, shell.TimeUnit, bool, error) {
	n := ctx.Int64("timeout")
	if n <= 0 {
		return 0, 0, false, nil
	}

	unit, err := shell.ParseTimeUnit(ctx.String("timeout-unit"))
	if err != nil {
		return 0, 0, false, err
	}

	return n, unit, true, nil
}

// writerOnly hides the Close method of the wrapped writer, so that sinks
// do not close the standard streams.
type writerOnly struct {
	io.Writer
}
