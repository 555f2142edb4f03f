package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio-digest/internal/domain"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }

func results(texts ...string) []domain.SegmentResult {
	out := make([]domain.SegmentResult, len(texts))
	for i, text := range texts {
		out[i] = domain.SegmentResult{
			Segment: domain.Segment{Index: i, Start: float64(i * 60), End: float64((i + 1) * 60)},
			Text:    text,
			Status:  domain.SegmentStatusOK,
		}
	}
	return out
}

// TestIncrementalWriteCreatesDirsAndHeader checks a first run on a new file.
func TestIncrementalWriteCreatesDirsAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texto", "nested", "texto_gerado.md")
	a := NewAssemblerForTests(path, domain.WriteModeAppend, "", fixedNow)

	if err := a.BeginSection("aula.mp3"); err != nil {
		t.Fatalf("BeginSection() error = %v", err)
	}
	for _, r := range results("primeiro", "segundo") {
		if err := a.AppendSegment(r); err != nil {
			t.Fatalf("AppendSegment() error = %v", err)
		}
	}

	want := "# Transcrição do Áudio\n\n---\n\n# Nova Execução: 2026-10-16 09:30:00\n\n" +
		"## Transcrição: aula.mp3\n\nprimeiro\n\nsegundo\n\n"
	if got := mustRead(t, path); got != want {
		t.Fatalf("file =\n%q\nwant\n%q", got, want)
	}
}

// TestFailedSegmentKeepsPosition checks one of three failures is a placeholder in place.
func TestFailedSegmentKeepsPosition(t *testing.T) {
	rs := results("um", "", "três")
	rs[1].Status = domain.SegmentStatusFailed
	rs[1].Reason = "api down"

	a := NewAssemblerForTests(filepath.Join(t.TempDir(), "t.md"), domain.WriteModeAppend, "", fixedNow)
	body := a.Join(rs)
	if body != "um\n\n[ERRO NA TRANSCRIÇÃO DESTE TRECHO]\n\ntrês" {
		t.Fatalf("body = %q", body)
	}
}

// TestIncrementalAndSectionWritesMatch checks both persistence paths give the same body.
func TestIncrementalAndSectionWritesMatch(t *testing.T) {
	dir := t.TempDir()
	rs := results(" alfa ", "beta", "gama")
	rs[2].Status = domain.SegmentStatusFailed

	inc := NewAssemblerForTests(filepath.Join(dir, "inc.md"), domain.WriteModeFresh, "[X]", fixedNow)
	if err := inc.BeginSection("a.wav"); err != nil {
		t.Fatalf("BeginSection: %v", err)
	}
	for _, r := range rs {
		if err := inc.AppendSegment(r); err != nil {
			t.Fatalf("AppendSegment: %v", err)
		}
	}

	whole := NewAssemblerForTests(filepath.Join(dir, "whole.md"), domain.WriteModeFresh, "[X]", fixedNow)
	if err := whole.WriteSection("a.wav", rs); err != nil {
		t.Fatalf("WriteSection: %v", err)
	}

	a, b := mustRead(t, inc.Path()), mustRead(t, whole.Path())
	if a != b {
		t.Fatalf("incremental =\n%q\nsection =\n%q", a, b)
	}

	_, body, found := strings.Cut(a, "## Transcrição: a.wav\n\n")
	if !found {
		t.Fatalf("section heading missing in %q", a)
	}
	if strings.TrimSuffix(body, "\n\n") != whole.Join(rs) {
		t.Fatalf("body = %q, want %q", body, whole.Join(rs))
	}
}

// TestAppendModeKeepsPriorRuns checks runs accumulate with markers and a single title.
func TestAppendModeKeepsPriorRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.md")
	for i := 0; i < 2; i++ {
		a := NewAssemblerForTests(path, domain.WriteModeAppend, "", fixedNow)
		if err := a.WriteSection("f.mp3", results("texto")); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	got := mustRead(t, path)
	if n := strings.Count(got, DocumentTitle); n != 1 {
		t.Fatalf("title count = %d, want 1", n)
	}
	if n := strings.Count(got, "# Nova Execução:"); n != 2 {
		t.Fatalf("marker count = %d, want 2", n)
	}
}

// TestFreshModeTruncatesOnce checks fresh mode truncates only at run start.
func TestFreshModeTruncatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.md")
	if err := os.WriteFile(path, []byte("old content\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	a := NewAssemblerForTests(path, domain.WriteModeFresh, "", fixedNow)
	if err := a.WriteSection("a.mp3", results("a")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := a.WriteSection("b.mp3", results("b")); err != nil {
		t.Fatalf("second: %v", err)
	}

	got := mustRead(t, path)
	if strings.Contains(got, "old content") {
		t.Fatalf("fresh mode kept old content: %q", got)
	}
	if !strings.Contains(got, "## Transcrição: a.mp3") || !strings.Contains(got, "## Transcrição: b.mp3") {
		t.Fatalf("second section truncated the first: %q", got)
	}
	if !strings.HasPrefix(got, DocumentTitle) {
		t.Fatalf("missing title: %q", got)
	}
}

// TestNoWriteLeavesFileUntouched checks the lazy run header.
func TestNoWriteLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.md")
	a := NewAssembler(path, domain.WriteModeFresh, "")
	if a.Started() {
		t.Fatal("new assembler should not be started")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file should not exist, stat err = %v", err)
	}
}

// TestReadRejectsMissingAndBlank checks summarizer preconditions.
func TestReadRejectsMissingAndBlank(t *testing.T) {
	dir := t.TempDir()
	if _, err := Read(filepath.Join(dir, "missing.md")); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("missing: error = %v, want ErrConfig", err)
	}

	blank := filepath.Join(dir, "blank.md")
	if err := os.WriteFile(blank, []byte(" \n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(blank); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("blank: error = %v, want ErrConfig", err)
	}

	ok := filepath.Join(dir, "ok.md")
	if err := os.WriteFile(ok, []byte("texto"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := Read(ok); err != nil || got != "texto" {
		t.Fatalf("Read() = %q, %v", got, err)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
