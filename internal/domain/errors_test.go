package domain

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// TestPipelineErrorIsKind matches kinds through wrapping.
func TestPipelineErrorIsKind(t *testing.T) {
	err := fmt.Errorf("file a.mp3: %w", &PipelineError{Kind: ErrProbe, Stage: "probing", Message: "ffprobe failed", Err: os.ErrNotExist})

	if !errors.Is(err, ErrProbe) {
		t.Fatal("expected ErrProbe")
	}
	if errors.Is(err, ErrConfig) {
		t.Fatal("unexpected ErrConfig")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected wrapped cause")
	}

	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Stage != "probing" {
		t.Fatalf("errors.As = %+v", pe)
	}
}

// TestPipelineErrorMessage includes stage, command and cause.
func TestPipelineErrorMessage(t *testing.T) {
	err := &PipelineError{
		Kind:       ErrSegmentTranscription,
		Stage:      "transcribing",
		Message:    "window 2 failed",
		CommandLog: CommandLog{Command: "ffmpeg", ExitCode: 1},
		Err:        errors.New("boom"),
	}
	want := "transcribing: window 2 failed (cmd=ffmpeg exit=1): boom"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	var nilErr *PipelineError
	if nilErr.Error() != "" || nilErr.Unwrap() != nil || nilErr.Is(ErrConfig) {
		t.Fatal("nil PipelineError must be inert")
	}
}

// TestConfigError builds an ErrConfig error.
func TestConfigError(t *testing.T) {
	err := ConfigError("config", "bad value", nil)
	if !errors.Is(err, ErrConfig) || !strings.HasPrefix(err.Error(), "config: bad value") {
		t.Fatalf("ConfigError = %v", err)
	}
}
