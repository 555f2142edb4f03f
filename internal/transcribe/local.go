package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"audio-digest/internal/command"
	"audio-digest/internal/domain"
)

// LocalOptions configures the whisper.cpp CLI backend. The decoding knobs
// trade determinism for fewer hallucination loops on long windows.
type LocalOptions struct {
	BinaryPath        string
	ModelPath         string
	Language          string
	Device            string
	Threads           int
	Temperature       float64
	BestOf            int
	BeamSize          int
	NoSpeechThreshold float64
	EntropyThreshold  float64
	LogprobThreshold  float64
}

// DefaultLocalOptions returns the decoding settings tuned for 30-minute windows.
func DefaultLocalOptions() LocalOptions {
	return LocalOptions{
		BinaryPath:        "whisper-cli",
		Device:            "auto",
		Temperature:       0.2,
		BestOf:            2,
		BeamSize:          2,
		NoSpeechThreshold: 0.6,
		EntropyThreshold:  2.4,
		LogprobThreshold:  -1.0,
	}
}

// LocalTranscriber runs one whisper.cpp process per window. The process exits
// after each window, so accelerator memory is released between windows.
type LocalTranscriber struct {
	opts     LocalOptions
	runner   command.Runner
	stat     func(name string) (os.FileInfo, error)
	readDir  func(name string) ([]os.DirEntry, error)
	readFile func(name string) ([]byte, error)
}

// NewLocalTranscriber builds the production whisper.cpp backend.
func NewLocalTranscriber(opts LocalOptions) *LocalTranscriber {
	return NewLocalTranscriberForTests(opts, command.ExecRunner{}, os.Stat)
}

// NewLocalTranscriberForTests constructs a local transcriber with injectable dependencies.
func NewLocalTranscriberForTests(opts LocalOptions, runner command.Runner, stat func(string) (os.FileInfo, error)) *LocalTranscriber {
	if strings.TrimSpace(opts.BinaryPath) == "" {
		opts.BinaryPath = "whisper-cli"
	}
	return &LocalTranscriber{
		opts:     opts,
		runner:   runner,
		stat:     stat,
		readDir:  os.ReadDir,
		readFile: os.ReadFile,
	}
}

// Backend implements Transcriber.
func (l *LocalTranscriber) Backend() string { return "local" }

// Model implements Transcriber.
func (l *LocalTranscriber) Model() string {
	return filepath.Base(strings.TrimSpace(l.opts.ModelPath))
}

// Options implements Transcriber.
func (l *LocalTranscriber) Options() string {
	o := l.opts
	return fmt.Sprintf("lang=%s tp=%s bo=%d bs=%d nth=%s et=%s lpt=%s",
		languageTag(o.Language), formatFloat(o.Temperature), o.BestOf, o.BeamSize,
		formatFloat(o.NoSpeechThreshold), formatFloat(o.EntropyThreshold), formatFloat(o.LogprobThreshold))
}

// Transcribe runs whisper.cpp with txt export next to wavPath and reads it back.
func (l *LocalTranscriber) Transcribe(ctx context.Context, wavPath string) (Transcription, error) {
	modelPath, err := l.resolveModelPath(l.opts.ModelPath)
	if err != nil {
		return Transcription{}, domain.ConfigError("transcribing", err.Error(), err)
	}

	outBase := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	args := buildWhisperArgs(l.opts, modelPath, wavPath, outBase)

	res, runErr := l.runner.Run(ctx, l.opts.BinaryPath, args...)
	log := command.Log(l.opts.BinaryPath, args, res)
	out := Transcription{Logs: []domain.CommandLog{log}}
	if runErr != nil {
		return out, &domain.PipelineError{
			Stage:      "transcribing",
			Message:    "whisper.cpp transcription failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	textPath := outBase + ".txt"
	content, err := l.readFile(textPath)
	if err != nil {
		return out, &domain.PipelineError{
			Stage:      "transcribing",
			Message:    "whisper.cpp completed but transcript .txt file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	out.Text = strings.TrimSpace(string(content))
	return out, nil
}

// resolveModelPath returns model file path from file or directory input.
func (l *LocalTranscriber) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := l.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := l.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// buildWhisperArgs builds whisper.cpp args for txt export. -mc 0 drops the
// previous-text prompt so a loop in one window cannot leak into the next.
func buildWhisperArgs(opts LocalOptions, modelPath, audioPath, outBase string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-otxt",
		"-tp", formatFloat(opts.Temperature),
		"-bo", strconv.Itoa(opts.BestOf),
		"-bs", strconv.Itoa(opts.BeamSize),
		"-nth", formatFloat(opts.NoSpeechThreshold),
		"-et", formatFloat(opts.EntropyThreshold),
		"-lpt", formatFloat(opts.LogprobThreshold),
		"-mc", "0",
		"-sns",
	}

	if strings.EqualFold(opts.Device, "cpu") {
		args = append(args, "-ng")
	}
	if opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(opts.Threads))
	}
	if lang := normalizeLanguage(opts.Language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
