package cmd

import (
	"context"
	"fmt"

	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/urfave/cli/v2"
)

var (
	linesCmdDescription = `The lines command starts the given process and prints each line
of its standard output as soon as it is read. Lines of the standard
error are prefixed with the given error prefix.

If --timeout is set, each line is waited for at most the given time.`
	linesCmd = &cli.Command{
		Name:        "lines",
		Usage:       "Run a process and stream its output line by line.",
		ArgsUsage:   "-- command [args...]",
		Description: linesCmdDescription,
		Action:      linesAction,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:     "number",
				Aliases:  []string{"n"},
				Usage:    "number the output lines.",
				Category: "streams",
			},
			&cli.StringFlag{
				Name:     "error-prefix",
				Usage:    "the prefix of lines read from the standard error.",
				Value:    "! ",
				Category: "streams",
			},
		}, commandFlags...),
	}
)

func linesAction(ctx *cli.Context) error {
	return invoke(ctx, func(c context.Context, launcher *launch.Launcher) (int, error) {
		sh, err := newShell(ctx, launcher)
		if err != nil {
			return 0, err
		}

		echo(ctx, sh)

		if !ctx.Bool("merge-stderr") {
			prefix := ctx.String("error-prefix")
			sh.SetErrorLine(func(line string) {
				if line != shell.EndOfStream {
					fmt.Fprintln(ctx.App.ErrWriter, prefix+line)
				}
			})
		}

		promise, err := sh.StartToLinesQueue(c)
		if err != nil {
			return 0, err
		}

		q, err := promise.Get(c)
		if err != nil {
			return 0, err
		}

		number := 0
		emit := func(line string) {
			number++
			if ctx.Bool("number") {
				fmt.Fprintf(ctx.App.Writer, "%6d  %s\n", number, line)
			} else {
				fmt.Fprintln(ctx.App.Writer, line)
			}
		}

		n, unit, bounded, err := timeout(ctx)
		if err != nil {
			return 0, err
		}

		if bounded {
			if !shell.ForEachLinePoll(q, emit, n, unit) {
				return exitTimeout, nil
			}
		} else if err := shell.ForEachLineContext(c, q, emit); err != nil {
			return 0, err
		}

		p := sh.Process()

		evt, err := p.WaitContext(c)
		if err != nil {
			return 0, err
		}

		// report failures of the error stream
		if _, err := shell.AllOf(p.Ancillary()...).Get(c); err != nil {
			return 0, err
		}

		return evt.ReturnCode(), nil
	})
}

func init() {
	rootApp.Commands = append(rootApp.Commands, linesCmd)
}
