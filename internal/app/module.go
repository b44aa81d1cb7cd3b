package app

import (
	"context"

	"github.com/lambda-feedback/procshell/config"
	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/util/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Invocation runs a command using the launcher and returns the exit code
// the application shuts down with.
type Invocation func(ctx context.Context, launcher *launch.Launcher) (int, error)

// Module provides the config sections and the launcher.
func Module(cfg config.Config) fx.Option {
	return fx.Module(
		"shared",
		// rename logger for module
		logging.DecorateLogger("exec"),
		// provide global config
		fx.Supply(cfg),
		// provide shell and launch config
		fx.Supply(cfg.Shell),
		fx.Supply(cfg.Launch),
		// provide launcher
		fx.Provide(launch.New),
	)
}

// InvokeParams represents the dependencies of an invocation.
type InvokeParams struct {
	fx.In

	Context    context.Context
	Launcher   *launch.Launcher
	Logger     *zap.Logger
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
}

// Invoke runs fn in the background once the application has started and
// shuts the application down with its exit code. A failing invocation
// exits with code 1.
func Invoke(fn Invocation) fx.Option {
	return fx.Invoke(func(params InvokeParams) {
		ctx, cancel := context.WithCancel(params.Context)
		done := make(chan struct{})

		params.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)

					code, err := fn(ctx, params.Launcher)
					if err != nil {
						params.Logger.Error("invocation failed", zap.Error(err))
						if code == 0 {
							code = 1
						}
					}

					if err := params.Shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
						params.Logger.Error("failed to shut down", zap.Error(err))
					}
				}()

				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()

				select {
				case <-done:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	})
}
