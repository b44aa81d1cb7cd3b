package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/urfave/cli/v2"
)

var (
	echoCmdDescription = `The echo command assembles the given process like the run
command, but prints its command line instead of running it.

With --env-only, the environment variables set for the process
are printed instead.`
	echoCmd = &cli.Command{
		Name:        "echo",
		Usage:       "Print the command line of a process without running it.",
		ArgsUsage:   "-- command [args...]",
		Description: echoCmdDescription,
		Action:      echoAction,
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "env-only",
				Usage: "print the environment variables set for the process.",
			},
		}, commandFlags...),
	}
)

func echoAction(ctx *cli.Context) error {
	return invoke(ctx, func(_ context.Context, launcher *launch.Launcher) (int, error) {
		sh, err := newShell(ctx, launcher)
		if err != nil {
			return 0, err
		}

		if ctx.Bool("env-only") {
			env := sh.Snapshot().Env

			keys := make([]string, 0, len(env))
			for key := range env {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			for _, key := range keys {
				fmt.Fprintf(ctx.App.Writer, "%s=%s\n", key, env[key])
			}
			return 0, nil
		}

		fmt.Fprintln(ctx.App.Writer, sh.EchoString())

		return 0, nil
	})
}

func init() {
	rootApp.Commands = append(rootApp.Commands, echoCmd)
}
