// Package worker manages the external analysis/build process: spawn,
// stream structured progress from stdout, buffer stderr, and reap.
//
// The worker's side effect is writing result records to durable storage;
// on a zero exit the caller re-reads authoritative results from the
// queue store rather than trusting captured output. This keeps "process
// succeeded" and "results are present" independently verifiable.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forgeworks/issuepilot/internal/types"
)

// ErrNotInstalled marks a preflight failure: the worker executable or
// its working directory is missing. Callers match with errors.Is and
// render setup guidance instead of a generic runtime failure.
var ErrNotInstalled = errors.New("worker not installed or configured")

// maxOutputLines caps captured stdout to prevent memory exhaustion from
// long-running workers.
const maxOutputLines = 10000

// progressPattern matches the worker's structured progress marker:
// a bracketed percentage followed by a free-text message.
var progressPattern = regexp.MustCompile(`\[(\d{1,3})%\]\s*(.*)`)

// ProgressFunc receives each structured progress line as it is scanned.
type ProgressFunc func(percent int, message string)

// RunConfig describes one worker invocation.
type RunConfig struct {
	// Executable is the worker binary, resolved against PATH when not
	// absolute.
	Executable string
	// Args are passed to the worker verbatim; see Command for the
	// standard argument contract.
	Args []string
	// WorkingDir is the directory the worker runs in. Must exist.
	WorkingDir string
	// Env entries are appended to the current process environment.
	Env []string
	// OnProgress, when non-nil, is invoked for every structured
	// progress line on stdout, in output order.
	OnProgress ProgressFunc
}

// Result holds the terminal outcome of a worker invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
	// Stdout holds captured output lines, capped at maxOutputLines.
	Stdout []string
	// Stderr is the full buffered standard-error text.
	Stderr string
}

// Command builds the standard worker argument list:
//
//	<worker> <pipelineKind> --project <path> [issueNumbers...] [--apply-labels]
func Command(kind types.PipelineKind, projectDir string, issueNumbers []int, applyLabels bool) []string {
	args := []string{string(kind), "--project", projectDir}
	for _, n := range issueNumbers {
		args = append(args, strconv.Itoa(n))
	}
	if applyLabels {
		args = append(args, "--apply-labels")
	}
	return args
}

// Run spawns the worker and blocks until it exits or ctx is canceled
// (cancellation kills the process). On exit code 0 the result is
// returned with a nil error. On a non-zero exit the error carries the
// buffered stderr text, or a generic exit message when stderr is empty.
// Preflight failures return ErrNotInstalled before any process spawns.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	path, err := preflight(cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, cfg.Args...)
	cmd.Dir = cfg.WorkingDir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	result := &Result{}
	var mu sync.Mutex
	var stderrBuf strings.Builder

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			if len(result.Stdout) < maxOutputLines {
				result.Stdout = append(result.Stdout, line)
			} else if len(result.Stdout) == maxOutputLines {
				result.Stdout = append(result.Stdout, "[... output truncated: limit reached ...]")
			}
			mu.Unlock()

			if cfg.OnProgress != nil {
				if percent, message, ok := parseProgress(line); ok {
					cfg.OnProgress(percent, message)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			mu.Lock()
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteString("\n")
			mu.Unlock()
		}
	}()

	// Drain the pipes before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	result.Duration = time.Since(start)
	result.Stderr = strings.TrimSpace(stderrBuf.String())

	if waitErr != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("worker terminated: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if result.Stderr != "" {
				return result, errors.New(result.Stderr)
			}
			return result, fmt.Errorf("worker exited with code %d", result.ExitCode)
		}
		return result, fmt.Errorf("failed to wait for worker: %w", waitErr)
	}

	return result, nil
}

// preflight resolves the executable and checks the working directory so
// a misconfigured installation fails fast, before spawning anything.
func preflight(cfg RunConfig) (string, error) {
	if cfg.Executable == "" {
		return "", fmt.Errorf("no worker executable specified: %w", ErrNotInstalled)
	}

	path := cfg.Executable
	if !filepath.IsAbs(path) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("worker %q not found on PATH: %w", cfg.Executable, ErrNotInstalled)
		}
		path = resolved
	} else if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("worker %q not found: %w", cfg.Executable, ErrNotInstalled)
	}

	if cfg.WorkingDir != "" {
		info, err := os.Stat(cfg.WorkingDir)
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("working directory %q does not exist: %w", cfg.WorkingDir, ErrNotInstalled)
		}
	}
	return path, nil
}

// parseProgress extracts the percentage and message from a structured
// progress line. Percentages above 100 are clamped.
func parseProgress(line string) (int, string, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	percent, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	if percent > 100 {
		percent = 100
	}
	return percent, strings.TrimSpace(m[2]), true
}
