package shell_test

import (
	"context"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/lambda-feedback/procshell/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_Start_IsAlive(t *testing.T) {
	p, err := newShell("cat").RedirectInput(shell.Pipe).Start(context.Background())
	require.NoError(t, err)

	defer p.Kill(time.Second)

	require.NotZero(t, p.Pid())
	assert.True(t, util.IsProcessAlive(p.Pid()))
}

func TestProcess_Wait_ReturnsExitEvent(t *testing.T) {
	p, err := newShell("echo").Start(context.Background())
	require.NoError(t, err)

	evt, err := p.Wait()
	require.NoError(t, err)

	require.NotNil(t, evt.Code)
	assert.Equal(t, 0, *evt.Code)
	assert.Nil(t, evt.Signal)
}

func TestProcess_WaitTimeout_ReturnsFalseWhileRunning(t *testing.T) {
	p, err := newShell("sleep", "1").Start(context.Background())
	require.NoError(t, err)

	defer p.Kill(time.Second)

	assert.False(t, p.WaitTimeout(50*time.Millisecond))
	assert.False(t, p.WaitTimeout(0))
}

func TestProcess_WaitContext_ReturnsContextError(t *testing.T) {
	p, err := newShell("sleep", "1").Start(context.Background())
	require.NoError(t, err)

	defer p.Kill(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.WaitContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_Terminate_SendsSigterm(t *testing.T) {
	p, err := newShell("sleep", "10").Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Terminate(5*time.Second))

	evt, err := p.Wait()
	require.NoError(t, err)

	require.NotNil(t, evt.Signal)
	assert.Equal(t, syscall.SIGTERM, syscall.Signal(*evt.Signal))
	assert.Nil(t, evt.Code)
	assert.Equal(t, 128+int(syscall.SIGTERM), evt.ReturnCode())
	assert.False(t, util.IsProcessAlive(p.Pid()))
}

func TestProcess_Kill_KillsProcessGroup(t *testing.T) {
	cfg := shell.DefaultConfig
	cfg.ProcessGroup = true

	p, err := shell.NewWithConfig(cfg, zap.NewNop(), "sh", "-c", "sleep 10 & wait").Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Kill(5*time.Second))

	evt, err := p.Wait()
	require.NoError(t, err)

	require.NotNil(t, evt.Signal)
	assert.Equal(t, syscall.SIGKILL, syscall.Signal(*evt.Signal))
}

func TestProcess_Kill_SucceedsAfterExit(t *testing.T) {
	p, err := newShell("true").Start(context.Background())
	require.NoError(t, err)

	_, err = p.Wait()
	require.NoError(t, err)

	assert.NoError(t, p.Kill(time.Second))
}

func TestProcess_ManualPipes(t *testing.T) {
	p, err := newShell("cat").
		RedirectInput(shell.Pipe).
		RedirectOutput(shell.Pipe).
		Start(context.Background())
	require.NoError(t, err)

	assert.Nil(t, p.Stderr())

	_, err = io.WriteString(p.Stdin(), "foobar")
	require.NoError(t, err)
	require.NoError(t, p.Stdin().Close())

	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "foobar", string(out))

	code, exited := p.ExitCode()
	if !exited {
		_, err = p.Wait()
		require.NoError(t, err)
		code, _ = p.ExitCode()
	}
	assert.Equal(t, 0, code)
}
