// Package transcript persists assembled segment texts as a Markdown document.
package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audio-digest/internal/domain"
)

const (
	// DocumentTitle heads a transcript file when it is first created.
	DocumentTitle = "# Transcrição do Áudio"
	// DefaultPlaceholder stands in for a window that failed to transcribe.
	DefaultPlaceholder = "[ERRO NA TRANSCRIÇÃO DESTE TRECHO]"

	sectionPrefix   = "## Transcrição: "
	runMarkerPrefix = "# Nova Execução: "
	runMarkerLayout = "2006-01-02 15:04:05"
	separator       = "\n\n"
)

// Assembler appends titled sections to the transcript file.
// The run marker is written lazily before the first section, so a run with
// nothing to transcribe leaves the file untouched.
type Assembler struct {
	path        string
	mode        domain.WriteMode
	placeholder string
	now         func() time.Time
	mkdirAll    func(path string, perm os.FileMode) error
	started     bool
}

// NewAssembler builds an assembler for path. An empty placeholder uses DefaultPlaceholder.
func NewAssembler(path string, mode domain.WriteMode, placeholder string) *Assembler {
	return NewAssemblerForTests(path, mode, placeholder, time.Now)
}

// NewAssemblerForTests constructs an assembler with an injectable clock.
func NewAssemblerForTests(path string, mode domain.WriteMode, placeholder string, now func() time.Time) *Assembler {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	if mode == "" {
		mode = domain.WriteModeAppend
	}
	return &Assembler{
		path:        path,
		mode:        mode,
		placeholder: placeholder,
		now:         now,
		mkdirAll:    os.MkdirAll,
	}
}

// Path returns the transcript file path.
func (a *Assembler) Path() string {
	return a.path
}

// Started reports whether this run has written anything yet.
func (a *Assembler) Started() bool {
	return a.started
}

// BeginSection writes the level-2 heading naming the source.
func (a *Assembler) BeginSection(label string) error {
	return a.write(sectionPrefix + label + separator)
}

// AppendSegment writes one window's text, or the placeholder when it failed.
func (a *Assembler) AppendSegment(result domain.SegmentResult) error {
	return a.write(a.Text(result) + separator)
}

// WriteSection writes a heading and the joined body in one call.
func (a *Assembler) WriteSection(label string, results []domain.SegmentResult) error {
	return a.write(sectionPrefix + label + separator + a.Join(results) + separator)
}

// Text returns the persisted text for one result.
func (a *Assembler) Text(result domain.SegmentResult) string {
	if result.Failed() {
		return a.placeholder
	}
	return strings.TrimSpace(result.Text)
}

// Join concatenates results in window order with the blank-line separator.
func (a *Assembler) Join(results []domain.SegmentResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = a.Text(r)
	}
	return strings.Join(parts, separator)
}

// write opens the file for append, emitting the run header on first use.
func (a *Assembler) write(text string) error {
	if err := a.mkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !a.started && a.mode == domain.WriteModeFresh {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(a.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if !a.started {
		header, err := a.runHeader(f)
		if err != nil {
			return err
		}
		text = header + text
	}

	if _, err := io.WriteString(f, text); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	a.started = true
	return nil
}

// runHeader returns the title (empty file only) and the run-boundary marker.
func (a *Assembler) runHeader(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat transcript: %w", err)
	}

	var b strings.Builder
	if info.Size() == 0 {
		b.WriteString(DocumentTitle + separator)
	}
	b.WriteString("---" + separator)
	b.WriteString(runMarkerPrefix + a.now().Format(runMarkerLayout) + separator)
	return b.String(), nil
}

// Read loads a persisted transcript. A missing or blank file is ErrConfig,
// since summarization cannot start without one.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ConfigError("summarizing", fmt.Sprintf("transcript not found: %s (run transcribe first)", path), err)
		}
		return "", domain.ConfigError("summarizing", fmt.Sprintf("cannot read transcript: %s", path), err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", domain.ConfigError("summarizing", fmt.Sprintf("transcript is empty: %s", path), nil)
	}
	return string(data), nil
}
