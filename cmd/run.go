package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/lambda-feedback/procshell/app"
	"github.com/lambda-feedback/procshell/config"
	internalapp "github.com/lambda-feedback/procshell/internal/app"
	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/lambda-feedback/procshell/util/conf"
	"github.com/lambda-feedback/procshell/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// exitTimeout is the exit code reported when the process did not
// complete within the timeout
const exitTimeout = 124

// terminateGrace is how long a process is given to exit once stopped
const terminateGrace = 5 * time.Second

var (
	runCmdDescription = `The run command starts the given process and exits with its
exit code. The standard output and error of the process are
copied to the standard output and error of procshell.

If --inherit is set, the process inherits the standard streams
of procshell instead.

If --timeout is set, procshell waits at most the given time for
the process and exits with code 124 if it did not complete. The
process is then asked to terminate, or killed right away if
--kill-on-timeout is set. It never outlives procshell.`
	runCmd = &cli.Command{
		Name:        "run",
		Usage:       "Run a process and exit with its exit code.",
		ArgsUsage:   "-- command [args...]",
		Description: runCmdDescription,
		Action:      runAction,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:     "inherit",
				Usage:    "let the process inherit the standard streams.",
				Category: "streams",
			},
		}, commandFlags...),
	}
)

func runAction(ctx *cli.Context) error {
	return invoke(ctx, func(c context.Context, launcher *launch.Launcher) (int, error) {
		sh, err := newShell(ctx, launcher)
		if err != nil {
			return 0, err
		}

		echo(ctx, sh)

		if ctx.Bool("inherit") {
			return runInherited(c, ctx, sh)
		}

		return runCaptured(c, ctx, sh)
	})
}

func runInherited(c context.Context, ctx *cli.Context, sh *shell.Shell) (int, error) {
	sh.RedirectToInherit()

	n, unit, bounded, err := timeout(ctx)
	if err != nil {
		return 0, err
	}

	if !bounded {
		return sh.RunToReturnCode(c)
	}

	promise, err := sh.StartToReturnCode(c)
	if err != nil {
		return 0, err
	}

	code, err := promise.GetTimeout(unit.Duration(n))
	if errors.Is(err, shell.ErrTimeout) {
		return exitTimeout, stopAfterTimeout(ctx, sh.Process())
	}

	return code, err
}

func runCaptured(c context.Context, ctx *cli.Context, sh *shell.Shell) (int, error) {
	if !ctx.Bool("merge-stderr") {
		sh.SetErrorWriter(writerOnly{ctx.App.ErrWriter})
	}

	out := shell.Bind(sh, shell.WriterSink(writerOnly{ctx.App.Writer}))

	n, unit, bounded, err := timeout(ctx)
	if err != nil {
		return 0, err
	}

	if bounded {
		_, err = out.StartAndGetTimeout(c, n, unit)
	} else {
		_, err = out.StartAndGet(c)
	}

	if errors.Is(err, shell.ErrTimeout) {
		return exitTimeout, stopAfterTimeout(ctx, sh.Process())
	}
	if err != nil {
		return 0, err
	}

	// the output may be complete while the process is still running
	code, exited := sh.Process().ExitCode()
	if !exited {
		return exitTimeout, stopAfterTimeout(ctx, sh.Process())
	}

	return code, nil
}

// stopAfterTimeout stops a process that outlived the timeout. It is
// killed if the shell is configured to kill on timeout, and asked to
// terminate otherwise.
func stopAfterTimeout(ctx *cli.Context, p *shell.Process) error {
	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	if cfg.Shell.KillOnTimeout {
		return p.Kill(terminateGrace)
	}

	if err := p.Terminate(terminateGrace); err != nil {
		return p.Kill(terminateGrace)
	}

	return nil
}

// invoke runs fn inside the application and maps its exit code to the
// exit code of procshell.
func invoke(ctx *cli.Context, fn internalapp.Invocation) error {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, configKeys)
	if err != nil {
		return err
	}

	err = a.Run(ctx.Context, internalapp.Invoke(fn))

	var exitErr *internalapp.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}

	if exitErr.ExitCode != 0 {
		log.Debug("process exited", zap.Int("code", exitErr.ExitCode))
		return cli.Exit("", exitErr.ExitCode)
	}

	return nil
}

func init() {
	rootApp.Commands = append(rootApp.Commands, runCmd)
}
