// Package diagnostics runs preflight checks before a job starts.
package diagnostics

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"audio-digest/internal/config"
	"audio-digest/internal/domain"
)

// Scope selects which stages a job will run.
type Scope struct {
	Transcribe bool
	Summarize  bool
	// WhisperModelPath is the local whisper model after catalog resolution.
	WhisperModelPath string
}

// System holds the OS calls a Checker makes. Nil fields fall back to the
// real implementation, so tests only override what they fake.
type System struct {
	LookPath   func(string) (string, error)
	Stat       func(string) (os.FileInfo, error)
	ReadDir    func(string) ([]os.DirEntry, error)
	MkdirAll   func(string, os.FileMode) error
	CreateTemp func(string, string) (*os.File, error)
	Remove     func(string) error
	Now        func() time.Time
}

func (s System) withDefaults() System {
	if s.LookPath == nil {
		s.LookPath = exec.LookPath
	}
	if s.Stat == nil {
		s.Stat = os.Stat
	}
	if s.ReadDir == nil {
		s.ReadDir = os.ReadDir
	}
	if s.MkdirAll == nil {
		s.MkdirAll = os.MkdirAll
	}
	if s.CreateTemp == nil {
		s.CreateTemp = os.CreateTemp
	}
	if s.Remove == nil {
		s.Remove = os.Remove
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Checker validates external tools, credentials and required filesystem paths.
type Checker struct {
	sys System
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return NewCheckerWith(System{})
}

// NewCheckerWith builds a checker over sys.
func NewCheckerWith(sys System) *Checker {
	return &Checker{sys: sys.withDefaults()}
}

// Run executes the checks relevant to scope and returns a combined report.
func (c *Checker) Run(cfg config.Config, scope Scope) domain.DiagnosticReport {
	var items []domain.DiagnosticItem

	if scope.Transcribe {
		items = append(items,
			c.checkTool("ffmpeg", cfg.Tools.FFmpeg),
			c.checkTool("ffprobe", cfg.Tools.FFprobe),
		)
		switch cfg.Transcription.Backend {
		case config.BackendLocal:
			items = append(items,
				c.checkTool("whisper", cfg.Transcription.Local.Binary),
				c.checkModelPath("whisper_model", "Whisper model", scope.WhisperModelPath, "",
					"Run `digest models download <id>` or set transcription.local.model to a model file."),
			)
		default:
			items = append(items, checkAPIKey(cfg.Transcription.Remote))
		}
		items = append(items, c.checkOutputDir("transcript_dir", "Transcript directory", filepath.Dir(cfg.Output.TranscriptPath)))
	}

	if scope.Summarize {
		switch cfg.Summary.Backend {
		case config.SummaryOpenAI:
			items = append(items, checkEndpoint(cfg.Summary.OpenAI.BaseURL))
		default:
			items = append(items,
				c.checkTool("llama", cfg.Summary.LlamaCpp.Binary),
				c.checkModelPath("summary_model", "Summary model", cfg.Summary.LlamaCpp.Model, ".gguf",
					"Download a GGUF instruct model and set summary.llamacpp.model."),
			)
		}
		items = append(items, c.checkOutputDir("summary_dir", "Summary directory", filepath.Dir(cfg.Output.SummaryPath)))
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.sys.Now().UTC(),
		HasFailures: lo.SomeBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items: items,
	}
}

// Err converts a failing report into ErrConfig listing every failed check.
func Err(report domain.DiagnosticReport) error {
	failures := report.Failures()
	if len(failures) == 0 {
		return nil
	}
	msgs := lo.Map(failures, func(item domain.DiagnosticItem, _ int) string {
		return item.Name + ": " + item.Message
	})
	return domain.ConfigError("preflight", strings.Join(msgs, "; "), nil)
}

func pass(id, name, format string, args ...any) domain.DiagnosticItem {
	return domain.DiagnosticItem{ID: id, Name: name, Status: domain.DiagnosticStatusPass, Message: fmt.Sprintf(format, args...)}
}

func warn(id, name, hint, format string, args ...any) domain.DiagnosticItem {
	return domain.DiagnosticItem{ID: id, Name: name, Status: domain.DiagnosticStatusWarn, Message: fmt.Sprintf(format, args...), Hint: hint}
}

func fail(id, name, hint, format string, args ...any) domain.DiagnosticItem {
	return domain.DiagnosticItem{ID: id, Name: name, Status: domain.DiagnosticStatusFail, Message: fmt.Sprintf(format, args...), Hint: hint}
}

// checkTool resolves a configured executable name or path.
func (c *Checker) checkTool(id, binary string) domain.DiagnosticItem {
	name := lo.Ternary(strings.TrimSpace(binary) == "", id, strings.TrimSpace(binary))
	resolved, err := c.sys.LookPath(name)
	if err != nil {
		return fail("tool_"+id, name,
			"Install it or set its full path in the config file.",
			"%s is not installed or not on PATH", name)
	}
	return pass("tool_"+id, name, "%s", resolved)
}

func checkAPIKey(remote config.RemoteConfig) domain.DiagnosticItem {
	const id, name = "api_key", "Transcription API key"
	if strings.TrimSpace(remote.APIKey) == "" {
		return fail(id, name,
			"Export GROQ_API_KEY or add it to a .env file next to the audios folder.",
			"GROQ_API_KEY is not set.")
	}
	return pass(id, name, "key set for %s", remote.BaseURL)
}

func checkEndpoint(raw string) domain.DiagnosticItem {
	const id, name = "summary_endpoint", "Summary endpoint"
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail(id, name, "Set summary.openai.base_url, e.g. http://localhost:8080/v1.", "%q is not an absolute URL", raw)
	}
	return pass(id, name, "%s", u.String())
}

// checkModelPath accepts a model file, or a directory holding at least one
// .bin or .gguf file. wantExt, when set, downgrades other extensions to a
// warning.
func (c *Checker) checkModelPath(id, name, path, wantExt, hint string) domain.DiagnosticItem {
	path = strings.TrimSpace(path)
	if path == "" {
		return fail(id, name, hint, "no model configured")
	}

	info, err := c.sys.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail(id, name, hint, "%s does not exist", path)
	case err != nil:
		return fail(id, name, hint, "cannot stat %s: %v", path, err)
	}

	if !info.IsDir() {
		if ext := strings.ToLower(filepath.Ext(path)); wantExt != "" && ext != wantExt {
			return warn(id, name, fmt.Sprintf("Expected a %s file.", wantExt), "%s has extension %q", path, ext)
		}
		return pass(id, name, "%s", path)
	}

	entries, err := c.sys.ReadDir(path)
	if err != nil {
		return fail(id, name, "Check the directory permissions.", "cannot list %s: %v", path, err)
	}
	models := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		return !e.IsDir() && isModelFile(e.Name())
	})
	if len(models) == 0 {
		return fail(id, name, hint, "%s holds no .bin or .gguf file", path)
	}
	return pass(id, name, "%s (%d model files)", path, len(models))
}

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".bin" || ext == ".gguf"
}

// checkOutputDir creates dir if needed and proves it accepts new files.
func (c *Checker) checkOutputDir(id, name, dir string) domain.DiagnosticItem {
	const hint = "Choose a writable location for the Markdown outputs."
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}

	if err := c.sys.MkdirAll(dir, 0o755); err != nil {
		return fail(id, name, hint, "cannot create %s: %v", dir, err)
	}
	probe, err := c.sys.CreateTemp(dir, ".digest-write-*")
	if err != nil {
		return fail(id, name, hint, "%s is not writable: %v", dir, err)
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = c.sys.Remove(probePath)

	return pass(id, name, "%s is writable", dir)
}
