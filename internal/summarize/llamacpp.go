package summarize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"audio-digest/internal/command"
	"audio-digest/internal/domain"
)

// DefaultLlamaModelPath is the quantized instruct model the CLI looks for.
const DefaultLlamaModelPath = "model/mistral-7b-instruct-v0.2.Q5_K_M.gguf"

// LlamaOptions configures the llama.cpp CLI backend.
type LlamaOptions struct {
	BinaryPath  string
	ModelPath   string
	MaxTokens   int
	ContextSize int
	Temperature float64
	Threads     int
}

// DefaultLlamaOptions matches a 4k-context 7B instruct model.
func DefaultLlamaOptions() LlamaOptions {
	return LlamaOptions{
		BinaryPath:  "llama-cli",
		ModelPath:   DefaultLlamaModelPath,
		MaxTokens:   1024,
		ContextSize: 4096,
		Temperature: 0.1,
	}
}

// LlamaModel runs one llama-cli process per prompt.
type LlamaModel struct {
	opts   LlamaOptions
	runner command.Runner
	stat   func(name string) (os.FileInfo, error)
	logger logrus.FieldLogger
}

// NewLlamaModel builds the production llama.cpp backend.
func NewLlamaModel(opts LlamaOptions, logger logrus.FieldLogger) *LlamaModel {
	return NewLlamaModelForTests(opts, command.ExecRunner{}, os.Stat, logger)
}

// NewLlamaModelForTests constructs a llama model with injectable dependencies.
func NewLlamaModelForTests(opts LlamaOptions, runner command.Runner, stat func(string) (os.FileInfo, error), logger logrus.FieldLogger) *LlamaModel {
	if strings.TrimSpace(opts.BinaryPath) == "" {
		opts.BinaryPath = "llama-cli"
	}
	if opts.Threads <= 0 {
		opts.Threads = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LlamaModel{opts: opts, runner: runner, stat: stat, logger: logger}
}

// Name implements Model.
func (m *LlamaModel) Name() string { return filepath.Base(m.opts.ModelPath) }

// Complete runs llama-cli and returns the generated text.
func (m *LlamaModel) Complete(ctx context.Context, prompt string) (string, error) {
	if _, err := m.stat(m.opts.ModelPath); err != nil {
		return "", domain.ConfigError("summarizing", fmt.Sprintf("summary model not found: %s", m.opts.ModelPath), err)
	}

	args := buildLlamaArgs(m.opts, prompt)
	res, err := m.runner.Run(ctx, m.opts.BinaryPath, args...)
	log := command.Log(m.opts.BinaryPath, args, res)
	m.logger.WithFields(logrus.Fields{"command": log.Command, "exit": log.ExitCode}).Debug("llama.cpp finished")
	if err != nil {
		return "", &domain.PipelineError{
			Stage:      "summarizing",
			Message:    "llama.cpp generation failed",
			CommandLog: log,
			Err:        err,
		}
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return "", &domain.PipelineError{Stage: "summarizing", Message: "llama.cpp produced no output", CommandLog: log}
	}
	return out, nil
}

func buildLlamaArgs(opts LlamaOptions, prompt string) []string {
	return []string{
		"-m", opts.ModelPath,
		"-p", prompt,
		"-n", strconv.Itoa(opts.MaxTokens),
		"-c", strconv.Itoa(opts.ContextSize),
		"--temp", strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
		"-t", strconv.Itoa(opts.Threads),
		"--no-display-prompt",
		"-no-cnv",
	}
}
