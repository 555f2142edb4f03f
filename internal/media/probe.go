// Package media probes and slices audio files with ffprobe/ffmpeg.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"audio-digest/internal/command"
	"audio-digest/internal/domain"
)

// ffprobeOutput is the subset of `ffprobe -of json` we read.
type ffprobeOutput struct {
	Format struct {
		Duration *decimal.Decimal `json:"duration"`
	} `json:"format"`
}

// Prober determines the total duration and identity of an audio file.
type Prober struct {
	ffprobePath string
	runner      command.Runner
	stat        func(name string) (os.FileInfo, error)
	hash        func(path string) (string, error)
}

// NewProber builds a prober backed by the ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      command.ExecRunner{},
		stat:        os.Stat,
		hash:        HashFile,
	}
}

// NewProberForTests constructs a prober with injectable dependencies.
func NewProberForTests(ffprobePath string, runner command.Runner, hash func(string) (string, error)) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		runner:      runner,
		stat:        os.Stat,
		hash:        hash,
	}
}

// Probe returns the AudioSource for path. All failures are ErrProbe.
func (p *Prober) Probe(ctx context.Context, path string) (domain.AudioSource, error) {
	if _, err := p.stat(path); err != nil {
		return domain.AudioSource{}, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "probing",
			Message: fmt.Sprintf("cannot open audio file: %s", path),
			Err:     err,
		}
	}

	args := buildProbeArgs(path)
	res, err := p.runner.Run(ctx, p.ffprobePath, args...)
	log := command.Log(p.ffprobePath, args, res)
	if err != nil {
		return domain.AudioSource{}, &domain.PipelineError{
			Kind:       domain.ErrProbe,
			Stage:      "probing",
			Message:    "ffprobe failed",
			CommandLog: log,
			Err:        err,
		}
	}

	duration, err := parseProbeDuration(res.Stdout)
	if err != nil {
		return domain.AudioSource{}, &domain.PipelineError{
			Kind:       domain.ErrProbe,
			Stage:      "probing",
			Message:    fmt.Sprintf("unreadable duration metadata: %s", path),
			CommandLog: log,
			Err:        err,
		}
	}

	sum, err := p.hash(path)
	if err != nil {
		return domain.AudioSource{}, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "probing",
			Message: fmt.Sprintf("cannot hash audio file: %s", path),
			Err:     err,
		}
	}

	return domain.AudioSource{
		Path:     path,
		Name:     filepath.Base(path),
		Duration: duration.InexactFloat64(),
		Hash:     sum,
	}, nil
}

// parseProbeDuration reads format.duration from ffprobe JSON output.
func parseProbeDuration(out string) (decimal.Decimal, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if parsed.Format.Duration == nil {
		return decimal.Zero, fmt.Errorf("ffprobe output has no format.duration")
	}
	if parsed.Format.Duration.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative duration %s", parsed.Format.Duration)
	}
	return *parsed.Format.Duration, nil
}

// buildProbeArgs builds ffprobe args that print only the container duration.
func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}
}
