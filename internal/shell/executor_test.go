package shell

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("bash commands")
	}
}

func TestRun_Success(t *testing.T) {
	skipOnWindows(t)
	e := NewExecutor(t.TempDir())

	res := e.Run(context.Background(), "echo hello", 10*time.Second)

	assert.True(t, res.Ran)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Empty(t, res.Reason)
}

func TestRun_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	e := NewExecutor(t.TempDir())

	res := e.Run(context.Background(), "echo oops >&2; exit 3", 10*time.Second)

	assert.True(t, res.Ran)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRun_Timeout(t *testing.T) {
	skipOnWindows(t)
	e := NewExecutor(t.TempDir())

	start := time.Now()
	res := e.Run(context.Background(), "sleep 5", 200*time.Millisecond)

	assert.False(t, res.Ran)
	assert.Equal(t, timeoutExitCode, res.ExitCode)
	assert.Equal(t, "timeout", res.Reason)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRun_Empty(t *testing.T) {
	e := NewExecutor(t.TempDir())

	res := e.Run(context.Background(), "   ", time.Second)

	assert.False(t, res.Ran)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "empty", res.Reason)
	assert.Equal(t, "empty command", res.Stderr)
}

func TestRun_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))
	e := NewExecutor(dir)

	res := e.Run(context.Background(), "pwd; ls", 10*time.Second)

	require.True(t, res.Ran)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, resolved)
	assert.Contains(t, res.Stdout, "marker.txt")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", maxCapturedBytes+100)
	got := truncate(long)
	assert.Len(t, got, maxCapturedBytes+len("\n...[truncated]"))
	assert.True(t, strings.HasSuffix(got, "...[truncated]"))
	assert.Equal(t, "short", truncate("short"))
}
