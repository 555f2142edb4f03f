package media

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"audio-digest/internal/command"
	"audio-digest/internal/domain"
)

// Extractor cuts one Segment out of a source file as 16 kHz mono WAV.
type Extractor struct {
	ffmpegPath string
	runner     command.Runner
	stat       func(name string) (os.FileInfo, error)
}

// NewExtractor builds an extractor backed by the ffmpeg binary.
func NewExtractor(ffmpegPath string) *Extractor {
	return NewExtractorForTests(ffmpegPath, command.ExecRunner{}, os.Stat)
}

// NewExtractorForTests constructs an extractor with injectable dependencies.
func NewExtractorForTests(ffmpegPath string, runner command.Runner, stat func(string) (os.FileInfo, error)) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Extractor{ffmpegPath: ffmpegPath, runner: runner, stat: stat}
}

// Extract writes seg of srcPath to outPath.
func (e *Extractor) Extract(ctx context.Context, srcPath string, seg domain.Segment, outPath string) (domain.CommandLog, error) {
	args := buildExtractArgs(srcPath, outPath, seg)
	res, err := e.runner.Run(ctx, e.ffmpegPath, args...)
	log := command.Log(e.ffmpegPath, args, res)
	if err != nil {
		return log, fmt.Errorf("ffmpeg segment extraction failed: %w", err)
	}
	if _, err := e.stat(outPath); err != nil {
		return log, fmt.Errorf("ffmpeg completed but segment file is missing: %w", err)
	}
	return log, nil
}

// buildExtractArgs seeks before -i so long files are not decoded from the start.
func buildExtractArgs(srcPath, outPath string, seg domain.Segment) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(seg.Start),
		"-t", formatSeconds(seg.Length()),
		"-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// formatSeconds renders seconds with millisecond precision for ffmpeg.
func formatSeconds(sec float64) string {
	return decimal.NewFromFloat(sec).StringFixed(3)
}
