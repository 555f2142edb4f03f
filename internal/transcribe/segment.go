package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"audio-digest/internal/domain"
	"audio-digest/internal/ledger"
)

// Extractor cuts one window out of a source file.
type Extractor interface {
	Extract(ctx context.Context, srcPath string, seg domain.Segment, outPath string) (domain.CommandLog, error)
}

// Cache serves previously successful window texts.
type Cache interface {
	CachedSegment(ctx context.Context, key ledger.Key) (string, bool, error)
}

// SegmentOptions tunes per-window behaviour.
type SegmentOptions struct {
	// MaxRepeats bounds identical consecutive sentences; 0 disables the filter.
	MaxRepeats int
	// Timeout bounds each external call; 0 means no limit.
	Timeout time.Duration
}

// SegmentTranscriber produces exactly one SegmentResult per window and never
// returns an error: failures become Failed results carrying the reason.
type SegmentTranscriber struct {
	extractor Extractor
	backend   Transcriber
	cache     Cache
	opts      SegmentOptions
	logger    logrus.FieldLogger
	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
}

// NewSegmentTranscriber wires an extractor and backend. cache may be nil.
func NewSegmentTranscriber(extractor Extractor, backend Transcriber, cache Cache, opts SegmentOptions, logger logrus.FieldLogger) *SegmentTranscriber {
	return NewSegmentTranscriberForTests(extractor, backend, cache, opts, logger, os.MkdirTemp, os.RemoveAll)
}

// NewSegmentTranscriberForTests constructs a segment transcriber with injectable filesystem hooks.
func NewSegmentTranscriberForTests(
	extractor Extractor,
	backend Transcriber,
	cache Cache,
	opts SegmentOptions,
	logger logrus.FieldLogger,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *SegmentTranscriber {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SegmentTranscriber{
		extractor: extractor,
		backend:   backend,
		cache:     cache,
		opts:      opts,
		logger:    logger,
		mkdirTemp: mkdirTemp,
		removeAll: removeAll,
	}
}

// Key returns the cache key of seg within src. Cached text is stored after
// repeat filtering, so MaxRepeats is part of the options fingerprint.
func (s *SegmentTranscriber) Key(src domain.AudioSource, seg domain.Segment) ledger.Key {
	return ledger.Key{
		AudioHash: src.Hash,
		Start:     seg.Start,
		End:       seg.End,
		Backend:   s.backend.Backend(),
		Model:     s.backend.Model(),
		Options:   fmt.Sprintf("%s repeats=%d", s.backend.Options(), s.opts.MaxRepeats),
	}
}

// Transcribe extracts seg, sends it to the backend and filters repetition loops.
// The in-flight window is not interrupted by cancellation of ctx; callers
// check ctx between windows. Timeouts still apply.
func (s *SegmentTranscriber) Transcribe(ctx context.Context, src domain.AudioSource, seg domain.Segment, onLog func(domain.CommandLog)) domain.SegmentResult {
	fields := logrus.Fields{"file": src.Name, "segment": seg.Index}
	ctx = context.WithoutCancel(ctx)

	if text, ok := s.cached(ctx, src, seg); ok {
		s.logger.WithFields(fields).Debug("segment served from cache")
		return domain.SegmentResult{Segment: seg, Text: text, Status: domain.SegmentStatusOK, Cached: true}
	}

	text, err := s.transcribe(ctx, src, seg, onLog)
	if err != nil {
		perr := &domain.PipelineError{
			Kind:    domain.ErrSegmentTranscription,
			Stage:   "transcribing",
			Message: fmt.Sprintf("segment %d [%.2fs-%.2fs] failed", seg.Index, seg.Start, seg.End),
			Err:     err,
		}
		s.logger.WithFields(fields).WithError(err).Warn("segment transcription failed, writing placeholder")
		return domain.SegmentResult{Segment: seg, Status: domain.SegmentStatusFailed, Reason: perr.Error(), Err: perr}
	}

	filtered := collapseRepeats(text, s.opts.MaxRepeats)
	if filtered != text {
		s.logger.WithFields(fields).Info("collapsed repeated sentences")
	}
	return domain.SegmentResult{Segment: seg, Text: filtered, Status: domain.SegmentStatusOK}
}

func (s *SegmentTranscriber) cached(ctx context.Context, src domain.AudioSource, seg domain.Segment) (string, bool) {
	if s.cache == nil || src.Hash == "" {
		return "", false
	}
	text, ok, err := s.cache.CachedSegment(ctx, s.Key(src, seg))
	if err != nil {
		s.logger.WithError(err).Warn("segment cache lookup failed")
		return "", false
	}
	return text, ok
}

func (s *SegmentTranscriber) transcribe(ctx context.Context, src domain.AudioSource, seg domain.Segment, onLog func(domain.CommandLog)) (string, error) {
	tempDir, err := s.mkdirTemp("", "audio-digest-*")
	if err != nil {
		return "", fmt.Errorf("create temporary workspace: %w", err)
	}
	defer func() { _ = s.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, fmt.Sprintf("segment-%04d.wav", seg.Index))

	extractCtx, cancel := s.withTimeout(ctx)
	log, err := s.extractor.Extract(extractCtx, src.Path, seg, wavPath)
	cancel()
	emitLog(onLog, log)
	if err != nil {
		return "", &domain.PipelineError{Stage: "extracting", Message: err.Error(), CommandLog: log, Err: err}
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.backend.Transcribe(callCtx, wavPath)
	for _, l := range out.Logs {
		emitLog(onLog, l)
	}
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *SegmentTranscriber) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

// emitLog forwards command logs when callback is configured.
func emitLog(cb func(log domain.CommandLog), log domain.CommandLog) {
	if cb != nil && log.Command != "" {
		cb(log)
	}
}
