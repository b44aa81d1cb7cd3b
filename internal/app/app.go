package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// App runs a single invocation inside an fx application and reports the
// invocation's exit code.
type App struct {
	log     *zap.Logger
	fxApp   *fx.App
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *App {
	return &App{
		log:     log,
		options: options,
	}
}

// Run starts the application, waits for it to shut down and returns an
// *ExitError carrying the exit code of the shutdown, or 1 if the
// application failed to start or stop.
func (a *App) Run(ctx context.Context, options ...fx.Option) error {
	// 0. after run ends, flush the logger
	defer a.log.Sync()

	// 1. create app context, cancelled once the run ends
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	// 2. create fx application with app context
	fxApp := a.createFxApp(appCtx, options...)
	a.fxApp = fxApp

	if err := fxApp.Err(); err != nil {
		a.log.Error("invalid application", zap.Error(err))
		return NewExitError(1)
	}

	// 3. create start context w/ timeout
	startCtx, cancelStart := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancelStart()

	// 4. start the application, exit on error
	if err := fxApp.Start(startCtx); err != nil {
		a.log.Error("failed to start", zap.Error(err))
		return NewExitError(1)
	}

	// 5. wait for the invocation to finish or a signal by the OS
	sig := <-fxApp.Wait()
	exitCode := sig.ExitCode

	// 6. cancel the app context, killing a still running process
	cancelApp()

	// 7. create shutdown context, stopping even if ctx is done
	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fxApp.StopTimeout())
	defer cancelStop()

	// 8. gracefully shutdown the app, exit on error
	if err := fxApp.Stop(stopCtx); err != nil {
		a.log.Error("failed to stop", zap.Error(err))
		return NewExitError(1)
	}

	// 9. return with the exit code
	return NewExitError(exitCode)
}

func (a *App) createFxApp(ctx context.Context, options ...fx.Option) *fx.App {
	// 1. create fx application
	return fx.New(
		// 2. inject global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		// 3. inject the logger
		fx.Supply(a.log),

		// 4. use the logger also for fx' logs
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: a.log.Named("fx")}
		}),

		// 5. provide app options
		fx.Options(a.options...),

		// 6. provide run options
		fx.Options(options...),
	)
}
