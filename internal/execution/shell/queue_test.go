package shell_test

import (
	"context"
	"testing"
	"time"

	"github.com/lambda-feedback/procshell/internal/execution/shell"
	"github.com/stretchr/testify/assert"
)

func TestLineQueue_DefaultCapacity(t *testing.T) {
	q := shell.NewLineQueue(0)

	assert.Equal(t, 100, q.Cap())
}

func TestLineQueue_Poll_TimesOutWhenEmpty(t *testing.T) {
	q := shell.NewLineQueue(1)

	_, ok := q.Poll(10 * time.Millisecond)
	assert.False(t, ok)

	_, ok = q.Poll(0)
	assert.False(t, ok)
}

func TestForEachLine_StopsAtSentinel(t *testing.T) {
	q := shell.NewLineQueue(10)
	q.Put("a")
	q.Put("")
	q.Put("b")
	q.Put(shell.EndOfStream)
	q.Put("after")

	var lines []string
	shell.ForEachLine(q, func(line string) {
		lines = append(lines, line)
	})

	assert.Equal(t, []string{"a", "", "b"}, lines)
	assert.Equal(t, 1, q.Len())
}

func TestForEachLinePoll_ReturnsFalseOnTimeout(t *testing.T) {
	q := shell.NewLineQueue(10)
	q.Put("a")

	var lines []string
	ok := shell.ForEachLinePoll(q, func(line string) {
		lines = append(lines, line)
	}, 20, shell.Milliseconds)

	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, lines)
}

func TestForEachLinePoll_ReturnsTrueAtSentinel(t *testing.T) {
	q := shell.NewLineQueue(10)

	go func() {
		q.Put("a")
		q.Put(shell.EndOfStream)
	}()

	var lines []string
	ok := shell.ForEachLinePoll(q, func(line string) {
		lines = append(lines, line)
	}, 1, shell.Seconds)

	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, lines)
}

func TestForEachLineContext_ReturnsContextError(t *testing.T) {
	q := shell.NewLineQueue(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := shell.ForEachLineContext(ctx, q, func(string) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineQueue_PutContext_BlocksWhenFull(t *testing.T) {
	q := shell.NewLineQueue(1)
	q.Put("a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.PutContext(ctx, "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
