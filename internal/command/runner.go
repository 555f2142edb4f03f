// Package command runs external tools (ffmpeg, ffprobe, whisper.cpp, llama.cpp)
// and captures their output for logs and errors.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"audio-digest/internal/domain"
)

// Result is a captured process execution response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Log builds the command log recorded in events and errors.
func Log(name string, args []string, res Result) domain.CommandLog {
	return domain.CommandLog{
		Command:  name,
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) (Result, error)

// Run delegates to the wrapped function; a nil Func succeeds with no output.
func (f Func) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if f == nil {
		return Result{}, nil
	}
	return f(ctx, name, args...)
}
