package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lambda-feedback/procshell/config"
	"github.com/lambda-feedback/procshell/internal/app"
	"github.com/lambda-feedback/procshell/internal/execution/launch"
	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		LogLevel: "info",
		Shell:    shell.DefaultConfig,
		Launch:   launch.DefaultConfig,
	}
}

func runApp(t *testing.T, fn app.Invocation) *app.ExitError {
	a := app.New(zap.NewNop(), app.Module(testConfig()))

	err := a.Run(context.Background(), app.Invoke(fn))

	var exitErr *app.ExitError
	require.ErrorAs(t, err, &exitErr)

	return exitErr
}

func TestApp_Run_ExitsWithChildCode(t *testing.T) {
	exitErr := runApp(t, func(ctx context.Context, l *launch.Launcher) (int, error) {
		sh, err := l.Command([]string{"sh", "-c", "exit 7"}, nil)
		if err != nil {
			return 0, err
		}

		return sh.RunToReturnCode(ctx)
	})

	assert.Equal(t, 7, exitErr.ExitCode)
}

func TestApp_Run_ExitsWithZero(t *testing.T) {
	exitErr := runApp(t, func(context.Context, *launch.Launcher) (int, error) {
		return 0, nil
	})

	assert.Equal(t, 0, exitErr.ExitCode)
}

func TestApp_Run_FailingInvocation(t *testing.T) {
	exitErr := runApp(t, func(context.Context, *launch.Launcher) (int, error) {
		return 0, errors.New("failed")
	})

	assert.Equal(t, 1, exitErr.ExitCode)
}

func TestApp_Run_CancelsInvocationOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a := app.New(zap.NewNop(), app.Module(testConfig()))

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	begin := time.Now()
	err := a.Run(ctx, app.Invoke(func(ctx context.Context, l *launch.Launcher) (int, error) {
		sh, err := l.Command([]string{"sleep", "10"}, nil)
		if err != nil {
			return 0, err
		}

		return sh.RunToReturnCode(ctx)
	}))

	assert.True(t, app.IsExitError(err))
	assert.Less(t, time.Since(begin), 5*time.Second)
}

func TestIsExitError(t *testing.T) {
	assert.False(t, app.IsExitError(nil))
	assert.False(t, app.IsExitError(errors.New("other")))
	assert.True(t, app.IsExitError(app.NewExitError(2)))
}
