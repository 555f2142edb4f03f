package transcribe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"audio-digest/internal/domain"
	"audio-digest/internal/ledger"
	"audio-digest/internal/transcript"
)

// fakeProber returns a fixed source or error.
type fakeProber struct {
	src domain.AudioSource
	err error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (domain.AudioSource, error) {
	if f.err != nil {
		return domain.AudioSource{}, f.err
	}
	src := f.src
	src.Path = path
	return src, nil
}

// fakeExtractor writes an empty WAV placeholder at outPath.
type fakeExtractor struct {
	calls []domain.Segment
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, srcPath string, seg domain.Segment, outPath string) (domain.CommandLog, error) {
	f.calls = append(f.calls, seg)
	log := domain.CommandLog{Command: "ffmpeg", Args: []string{"-i", srcPath, outPath}}
	if f.err != nil {
		return log, f.err
	}
	return log, os.WriteFile(outPath, []byte("wav"), 0o644)
}

// fakeBackend answers windows in call order.
type fakeBackend struct {
	texts []string
	errs  map[int]error
	calls int
}

func (f *fakeBackend) Backend() string { return "remote" }
func (f *fakeBackend) Model() string   { return "fake-model" }
func (f *fakeBackend) Options() string { return "lang=pt tp=0" }

func (f *fakeBackend) Transcribe(ctx context.Context, wavPath string) (Transcription, error) {
	i := f.calls
	f.calls++
	if err := f.errs[i]; err != nil {
		return Transcription{}, err
	}
	if i < len(f.texts) {
		return Transcription{Text: f.texts[i]}, nil
	}
	return Transcription{Text: "texto"}, nil
}

// recordingWriter captures writer calls in order.
type recordingWriter struct {
	events []string
}

func (w *recordingWriter) BeginSection(label string) error {
	w.events = append(w.events, "section:"+label)
	return nil
}

func (w *recordingWriter) AppendSegment(res domain.SegmentResult) error {
	w.events = append(w.events, "segment:"+string(res.Status))
	return nil
}

func (w *recordingWriter) WriteSection(label string, results []domain.SegmentResult) error {
	w.events = append(w.events, "whole:"+label)
	return nil
}

// memoryLedger is a map-backed Cache and Recorder.
type memoryLedger struct {
	texts    map[ledger.Key]string
	recorded []ledger.Key
}

func (m *memoryLedger) CachedSegment(ctx context.Context, key ledger.Key) (string, bool, error) {
	text, ok := m.texts[key]
	return text, ok, nil
}

func (m *memoryLedger) RecordSegment(ctx context.Context, runID, fileName string, key ledger.Key, res domain.SegmentResult) error {
	m.recorded = append(m.recorded, key)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type pipelineFixture struct {
	input     string
	backend   *fakeBackend
	extractor *fakeExtractor
	writer    *recordingWriter
	sleeps    []time.Duration
	pipeline  *Pipeline
}

func newFixture(t *testing.T, duration float64, writer Writer, cache *memoryLedger) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		input:     mustWriteFile(t, filepath.Join(t.TempDir(), "aula.mp3"), "media"),
		backend:   &fakeBackend{errs: map[int]error{}},
		extractor: &fakeExtractor{},
		writer:    &recordingWriter{},
	}
	if writer == nil {
		writer = f.writer
	}

	var c Cache
	var r Recorder
	if cache != nil {
		c, r = cache, cache
	}
	segments := NewSegmentTranscriber(f.extractor, f.backend, c, SegmentOptions{MaxRepeats: 2}, quietLogger())
	sleep := func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	f.pipeline = NewPipelineForTests(
		&fakeProber{src: domain.AudioSource{Name: "aula.mp3", Duration: duration, Hash: "h"}},
		segments, writer, r, quietLogger(), os.Stat, sleep,
	)
	return f
}

// TestPipelineRunThreeWindows checks the 125s/60s scenario end to end.
func TestPipelineRunThreeWindows(t *testing.T) {
	f := newFixture(t, 125, nil, nil)
	f.backend.texts = []string{"um", "dois", "três"}

	var stages []string
	res, err := f.pipeline.Run(context.Background(), Request{
		InputPath:     f.input,
		SegmentLength: 60,
		Incremental:   true,
		Pause:         time.Second,
		OnStage:       func(s string) { stages = append(stages, s) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Segments) != 3 || res.Failed != 0 {
		t.Fatalf("segments = %d failed = %d, want 3/0", len(res.Segments), res.Failed)
	}
	want := [][2]float64{{0, 60}, {60, 120}, {120, 125}}
	for i, seg := range f.extractor.calls {
		if seg.Start != want[i][0] || seg.End != want[i][1] {
			t.Fatalf("extract %d = [%v,%v), want %v", i, seg.Start, seg.End, want[i])
		}
	}
	if got := strings.Join(f.writer.events, ","); got != "section:aula.mp3,segment:ok,segment:ok,segment:ok" {
		t.Fatalf("writer events = %s", got)
	}
	if len(f.sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2 (between calls only)", len(f.sleeps))
	}
	if strings.Join(stages, ",") != "probing,transcribing" {
		t.Fatalf("stages = %v", stages)
	}
}

// TestPipelineRunFailedWindowBecomesPlaceholder checks that 1 of 3 failures keeps its position.
func TestPipelineRunFailedWindowBecomesPlaceholder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "texto", "texto_gerado.md")
	asm := transcript.NewAssembler(out, domain.WriteModeFresh, "")
	f := newFixture(t, 125, asm, nil)
	f.backend.texts = []string{"primeiro", "", "terceiro"}
	f.backend.errs[1] = errors.New("http 500")

	res, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60, Incremental: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 1 || !res.Segments[1].Failed() {
		t.Fatalf("failed = %d, segment[1] = %+v", res.Failed, res.Segments[1])
	}
	if !errors.Is(res.Segments[1].Err, domain.ErrSegmentTranscription) {
		t.Fatalf("segment[1].Err = %v, want ErrSegmentTranscription", res.Segments[1].Err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	body := "primeiro\n\n" + transcript.DefaultPlaceholder + "\n\nterceiro\n\n"
	if !strings.HasSuffix(string(data), "## Transcrição: aula.mp3\n\n"+body) {
		t.Fatalf("transcript =\n%s", data)
	}
}

// TestPipelineRunZeroDuration checks that nothing is written for empty audio.
func TestPipelineRunZeroDuration(t *testing.T) {
	f := newFixture(t, 0, nil, nil)

	res, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60, Incremental: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Planned != 0 || len(f.writer.events) != 0 || f.backend.calls != 0 {
		t.Fatalf("planned=%d writes=%v calls=%d, want nothing", res.Planned, f.writer.events, f.backend.calls)
	}
}

// TestPipelineRunNonIncrementalWritesOnce checks the single-write path.
func TestPipelineRunNonIncrementalWritesOnce(t *testing.T) {
	f := newFixture(t, 90, nil, nil)

	if _, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.Join(f.writer.events, ","); got != "whole:aula.mp3" {
		t.Fatalf("writer events = %s", got)
	}
}

// TestPipelineRunSingleSegment checks short-audio mode ignores the window length.
func TestPipelineRunSingleSegment(t *testing.T) {
	f := newFixture(t, 300, nil, nil)

	res, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60, SingleSegment: true, Incremental: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Planned != 1 || f.extractor.calls[0].End != 300 {
		t.Fatalf("planned = %d calls = %v", res.Planned, f.extractor.calls)
	}
}

// TestPipelineRunCancelBetweenWindows checks that cancellation stops after the in-flight window.
func TestPipelineRunCancelBetweenWindows(t *testing.T) {
	f := newFixture(t, 180, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := f.pipeline.Run(ctx, Request{
		InputPath:     f.input,
		SegmentLength: 60,
		Incremental:   true,
		OnSegment: func(r domain.SegmentResult, total int) {
			if r.Segment.Index == 0 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !res.Cancelled || len(res.Segments) != 1 || res.Segments[0].Failed() {
		t.Fatalf("result = %+v, want one ok segment", res)
	}
	if got := strings.Join(f.writer.events, ","); got != "section:aula.mp3,segment:ok" {
		t.Fatalf("writer events = %s", got)
	}
}

// TestPipelineRunUsesCache checks cached windows skip extraction and the pause.
func TestPipelineRunUsesCache(t *testing.T) {
	cache := &memoryLedger{texts: map[ledger.Key]string{}}
	f := newFixture(t, 120, nil, cache)
	cache.texts[ledger.Key{AudioHash: "h", Start: 0, End: 60, Backend: "remote", Model: "fake-model", Options: "lang=pt tp=0 repeats=2"}] = "do cache"

	res, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60, Incremental: true, Pause: time.Second})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Segments[0].Cached || res.Segments[0].Text != "do cache" {
		t.Fatalf("segment[0] = %+v, want cached", res.Segments[0])
	}
	if len(f.extractor.calls) != 1 || f.backend.calls != 1 {
		t.Fatalf("extract=%d backend=%d, want 1/1", len(f.extractor.calls), f.backend.calls)
	}
	if len(f.sleeps) != 0 {
		t.Fatalf("sleeps = %d, want 0 after a cache hit", len(f.sleeps))
	}
	if len(cache.recorded) != 1 || cache.recorded[0].Start != 60 {
		t.Fatalf("recorded = %v, want only the fresh window", cache.recorded)
	}
}

// TestPipelineRunProbeFailure checks probe errors surface as ErrProbe.
func TestPipelineRunProbeFailure(t *testing.T) {
	f := newFixture(t, 10, nil, nil)
	f.pipeline.prober = &fakeProber{err: &domain.PipelineError{Kind: domain.ErrProbe, Stage: "probing", Message: "corrupt"}}

	_, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 60})
	if !errors.Is(err, domain.ErrProbe) {
		t.Fatalf("Run() error = %v, want ErrProbe", err)
	}
	if len(f.writer.events) != 0 {
		t.Fatalf("writer events = %v, want none", f.writer.events)
	}
}

// TestPipelineRunRejectsEmptyAndMissingInput checks input preconditions.
func TestPipelineRunRejectsEmptyAndMissingInput(t *testing.T) {
	f := newFixture(t, 10, nil, nil)
	empty := mustWriteFile(t, filepath.Join(t.TempDir(), "empty.mp3"), "")

	for _, path := range []string{empty, filepath.Join(t.TempDir(), "missing.mp3")} {
		_, err := f.pipeline.Run(context.Background(), Request{InputPath: path, SegmentLength: 60})
		if !errors.Is(err, domain.ErrProbe) {
			t.Fatalf("Run(%s) error = %v, want ErrProbe", path, err)
		}
	}

	_, err := f.pipeline.Run(context.Background(), Request{InputPath: " ", SegmentLength: 60})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("Run(blank) error = %v, want ErrConfig", err)
	}
}

// TestPipelineRunInvalidLength checks non-positive window lengths are config errors.
func TestPipelineRunInvalidLength(t *testing.T) {
	f := newFixture(t, 10, nil, nil)
	_, err := f.pipeline.Run(context.Background(), Request{InputPath: f.input, SegmentLength: 0})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("Run() error = %v, want ErrConfig", err)
	}
}

// TestSegmentTranscriberExtractFailure checks extraction errors become failed results.
func TestSegmentTranscriberExtractFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("ffmpeg exploded")}
	backend := &fakeBackend{}
	var removed []string
	st := NewSegmentTranscriberForTests(extractor, backend, nil, SegmentOptions{}, quietLogger(), os.MkdirTemp, func(p string) error {
		removed = append(removed, p)
		return os.RemoveAll(p)
	})

	var logs []domain.CommandLog
	res := st.Transcribe(context.Background(), domain.AudioSource{Name: "a.mp3", Path: "a.mp3"}, domain.Segment{Index: 2, Start: 120, End: 180}, func(l domain.CommandLog) {
		logs = append(logs, l)
	})

	if !res.Failed() || !errors.Is(res.Err, domain.ErrSegmentTranscription) {
		t.Fatalf("result = %+v, want failed ErrSegmentTranscription", res)
	}
	if !strings.Contains(res.Reason, "ffmpeg exploded") {
		t.Fatalf("reason = %q", res.Reason)
	}
	if backend.calls != 0 {
		t.Fatalf("backend calls = %d, want 0", backend.calls)
	}
	if len(logs) != 1 || logs[0].Command != "ffmpeg" {
		t.Fatalf("logs = %+v", logs)
	}
	if len(removed) != 1 {
		t.Fatalf("temp dirs removed = %d, want 1", len(removed))
	}
	if _, err := os.Stat(removed[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp dir still exists: %v", err)
	}
}

// TestSegmentTranscriberCollapsesLoops checks the anti-repetition filter runs on backend text.
func TestSegmentTranscriberCollapsesLoops(t *testing.T) {
	backend := &fakeBackend{texts: []string{"Obrigado. Obrigado. Obrigado. Obrigado. Fim."}}
	st := NewSegmentTranscriber(&fakeExtractor{}, backend, nil, SegmentOptions{MaxRepeats: 2}, quietLogger())

	res := st.Transcribe(context.Background(), domain.AudioSource{Name: "a"}, domain.Segment{End: 10}, nil)
	if res.Text != "Obrigado. Obrigado. Fim." {
		t.Fatalf("text = %q", res.Text)
	}
}

// TestSleepContextHonoursCancel checks the rate-limit pause returns on cancel.
func TestSleepContextHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("sleepContext() error = %v, want context.Canceled", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepContext() error = %v", err)
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
