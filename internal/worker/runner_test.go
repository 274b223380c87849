package worker

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/issuepilot/internal/types"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test spawns sh")
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line        string
		wantPercent int
		wantMessage string
		wantOK      bool
	}{
		{"[10%] analyzing issue #42", 10, "analyzing issue #42", true},
		{"[100%] done", 100, "done", true},
		{"[0%]", 0, "", true},
		{"prefix [55%] message", 55, "message", true},
		{"[150%] clamped", 100, "clamped", true},
		{"no progress here", 0, "", false},
		{"[x%] not a number", 0, "", false},
		{"", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			percent, message, ok := parseProgress(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantPercent, percent)
				assert.Equal(t, tt.wantMessage, message)
			}
		})
	}
}

func TestCommand(t *testing.T) {
	args := Command(types.PipelineAutoFix, "/proj", []int{3, 7}, false)
	assert.Equal(t, []string{"autofix", "--project", "/proj", "3", "7"}, args)

	args = Command(types.PipelineTriage, "/proj", nil, true)
	assert.Equal(t, []string{"triage", "--project", "/proj", "--apply-labels"}, args)
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), RunConfig{Executable: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInstalled), "missing executable should map to ErrNotInstalled")
}

func TestRunMissingWorkingDir(t *testing.T) {
	skipOnWindows(t)
	_, err := Run(context.Background(), RunConfig{
		Executable: "sh",
		WorkingDir: "/nonexistent/path/for/test",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInstalled))
}

func TestRunParsesProgressLines(t *testing.T) {
	skipOnWindows(t)

	type update struct {
		percent int
		message string
	}
	var updates []update

	result, err := Run(context.Background(), RunConfig{
		Executable: "sh",
		Args: []string{"-c", `
			echo "[10%] starting analysis"
			echo "plain log line"
			echo "[50%] halfway there"
			echo "[100%] done"
		`},
		OnProgress: func(percent int, message string) {
			updates = append(updates, update{percent, message})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	require.Len(t, updates, 3)
	assert.Equal(t, update{10, "starting analysis"}, updates[0])
	assert.Equal(t, update{50, "halfway there"}, updates[1])
	assert.Equal(t, update{100, "done"}, updates[2])
	assert.Len(t, result.Stdout, 4, "plain lines captured too")
}

func TestRunNonZeroExitWithStderr(t *testing.T) {
	skipOnWindows(t)

	result, err := Run(context.Background(), RunConfig{
		Executable: "sh",
		Args:       []string{"-c", `echo "spec generation failed" >&2; exit 1`},
	})
	require.Error(t, err)
	assert.Equal(t, "spec generation failed", err.Error())
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, "spec generation failed", result.Stderr)
}

func TestRunNonZeroExitEmptyStderr(t *testing.T) {
	skipOnWindows(t)

	result, err := Run(context.Background(), RunConfig{
		Executable: "sh",
		Args:       []string{"-c", "exit 3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Equal(t, 3, result.ExitCode)
}

func TestRunContextCancellation(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := Run(ctx, RunConfig{
		Executable: "sh",
		Args:       []string{"-c", "sleep 30"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "terminated"))
}
