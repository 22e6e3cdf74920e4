package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner(t *testing.T) {
	runner := ExecRunner{}
	ctx := context.Background()

	res, err := runner.Run(ctx, "sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)

	_, err = runner.Run(ctx, "authwatch-no-such-binary")
	assert.Error(t, err)
}

func TestExecRunnerTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ExecRunner{}.Run(ctx, "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunnerTimeoutWithOrphanedOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(ctx, "sh", "-c", "sleep 5 & sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "a background child holding stdout must not block Run")
}

// fakeRunner replays canned results and records invocations.
type fakeRunner struct {
	result CommandResult
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.result, f.err
}
