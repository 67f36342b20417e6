package process

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/rpm-stager/internal/failure"
)

func requireShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
}

// TestCommand_Argv keeps the executable first.
func TestCommand_Argv(t *testing.T) {
	t.Parallel()

	cmd := Command{Name: "tar", Args: []string{"-czf", "x.tgz", "opt"}}
	require.Equal(t, []string{"tar", "-czf", "x.tgz", "opt"}, cmd.Argv())
	require.Equal(t, "tar -czf x.tgz opt", cmd.String())
}

// TestExecRunner_Success runs a command in the requested directory.
func TestExecRunner_Success(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()

	var out bytes.Buffer

	r := NewExecRunner(WithVerbose(true), WithOutput(&out))
	r.spinner = false

	require.NoError(t, r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "pwd"}, Dir: dir}))
	require.Contains(t, out.String(), dir)
}

// TestExecRunner_ExitCode reports argv and exit status, and replays captured output.
func TestExecRunner_ExitCode(t *testing.T) {
	t.Parallel()
	requireShell(t)

	var out bytes.Buffer

	r := NewExecRunner(WithOutput(&out))
	r.spinner = false

	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo broken archive; exit 3"}})
	require.ErrorIs(t, err, failure.ErrCommand)

	var e *failure.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, 3, e.ExitCode)
	require.Equal(t, []string{"sh", "-c", "echo broken archive; exit 3"}, e.Command)
	require.Contains(t, out.String(), "broken archive")
}

// TestExecRunner_MissingTool reports a command failure that never ran.
func TestExecRunner_MissingTool(t *testing.T) {
	t.Parallel()

	r := NewExecRunner(WithOutput(&bytes.Buffer{}))
	r.spinner = false

	err := r.Run(context.Background(), Command{Name: "./definitely-not-a-tar2rpm.sh"})
	require.ErrorIs(t, err, failure.ErrCommand)

	var e *failure.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, -1, e.ExitCode)
}

// TestExecRunner_Cancel stops a running tool when the context is cancelled.
func TestExecRunner_Cancel(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep is not available")
	}

	r := NewExecRunner(WithOutput(&bytes.Buffer{}))
	r.spinner = false

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := r.Run(ctx, Command{Name: "sleep", Args: []string{"10"}})

	require.Less(t, time.Since(started), 5*time.Second)
	require.ErrorIs(t, err, failure.ErrCommand)

	var e *failure.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, []string{"sleep", "10"}, e.Command)
	require.Equal(t, -1, e.ExitCode)
}
