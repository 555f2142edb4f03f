// Package transcribe turns audio files into ordered window transcriptions.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"audio-digest/internal/domain"
	"audio-digest/internal/ledger"
	"audio-digest/internal/segment"
)

// Prober reads duration and identity of an input file.
type Prober interface {
	Probe(ctx context.Context, path string) (domain.AudioSource, error)
}

// Writer persists window results to the transcript.
type Writer interface {
	BeginSection(label string) error
	AppendSegment(result domain.SegmentResult) error
	WriteSection(label string, results []domain.SegmentResult) error
}

// Recorder stores window results for history and caching.
type Recorder interface {
	RecordSegment(ctx context.Context, runID, fileName string, key ledger.Key, res domain.SegmentResult) error
}

// Request contains one input file and execution callbacks for one run.
type Request struct {
	JobID         string
	InputPath     string
	SegmentLength float64
	SingleSegment bool
	// Incremental persists after every window instead of once per file.
	Incremental bool
	// Pause separates consecutive backend calls (rate limiting).
	Pause     time.Duration
	OnStage   func(stage string)
	OnLog     func(log domain.CommandLog)
	OnSegment func(result domain.SegmentResult, total int)
}

// Result summarizes one processed file.
type Result struct {
	Source    domain.AudioSource
	Segments  []domain.SegmentResult
	Planned   int
	Failed    int
	Cancelled bool
}

// Pipeline orchestrates probing, planning and sequential window transcription
// for a single file.
type Pipeline struct {
	prober   Prober
	segments *SegmentTranscriber
	writer   Writer
	recorder Recorder
	logger   logrus.FieldLogger
	stat     func(name string) (os.FileInfo, error)
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPipeline constructs the production pipeline. recorder may be nil.
func NewPipeline(prober Prober, segments *SegmentTranscriber, writer Writer, recorder Recorder, logger logrus.FieldLogger) *Pipeline {
	return NewPipelineForTests(prober, segments, writer, recorder, logger, os.Stat, sleepContext)
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	prober Prober,
	segments *SegmentTranscriber,
	writer Writer,
	recorder Recorder,
	logger logrus.FieldLogger,
	stat func(name string) (os.FileInfo, error),
	sleep func(ctx context.Context, d time.Duration) error,
) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		prober:   prober,
		segments: segments,
		writer:   writer,
		recorder: recorder,
		logger:   logger,
		stat:     stat,
		sleep:    sleep,
	}
}

// Run transcribes one file. Window failures never abort the file; a probe
// failure is returned as ErrProbe so the caller can move on to the next file.
// Cancellation is honoured between windows and returns ctx.Err() together
// with everything transcribed so far.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, domain.ConfigError("probing", "input media path is required", nil)
	}

	info, err := p.stat(req.InputPath)
	if err != nil {
		return Result{}, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "probing",
			Message: fmt.Sprintf("cannot access input media: %s", req.InputPath),
			Err:     err,
		}
	}
	if info.Size() == 0 {
		return Result{}, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "probing",
			Message: fmt.Sprintf("input media is empty: %s", req.InputPath),
		}
	}

	emitStage(req.OnStage, "probing")
	src, err := p.prober.Probe(ctx, req.InputPath)
	if err != nil {
		return Result{}, err
	}

	logger := p.logger.WithField("file", src.Name)
	windows, err := p.plan(src, req)
	if err != nil {
		return Result{Source: src}, err
	}
	logger.WithFields(logrus.Fields{
		"duration": fmt.Sprintf("%.2fs", src.Duration),
		"segments": len(windows),
	}).Info("planned segments")

	result := Result{Source: src, Planned: len(windows)}
	if len(windows) == 0 {
		logger.Info("nothing to transcribe")
		return result, nil
	}

	emitStage(req.OnStage, "transcribing")
	if req.Incremental {
		if err := p.writer.BeginSection(src.Name); err != nil {
			return result, exportError(err)
		}
	}

	calledBackend := false
	for _, seg := range windows {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			break
		}
		if calledBackend && req.Pause > 0 {
			if err := p.sleep(ctx, req.Pause); err != nil {
				result.Cancelled = true
				break
			}
		}

		logger.WithField("segment", seg.Index).Infof("transcribing part %d/%d [%.2fs-%.2fs]", seg.Index+1, len(windows), seg.Start, seg.End)
		res := p.segments.Transcribe(ctx, src, seg, req.OnLog)
		calledBackend = !res.Cached
		result.Segments = append(result.Segments, res)
		if res.Failed() {
			result.Failed++
		}

		p.record(ctx, req.JobID, src, res)
		if req.Incremental {
			if err := p.writer.AppendSegment(res); err != nil {
				return result, exportError(err)
			}
		}
		if req.OnSegment != nil {
			req.OnSegment(res, len(windows))
		}
	}

	if !req.Incremental && len(result.Segments) > 0 {
		if err := p.writer.WriteSection(src.Name, result.Segments); err != nil {
			return result, exportError(err)
		}
	}

	if result.Cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

func (p *Pipeline) plan(src domain.AudioSource, req Request) ([]domain.Segment, error) {
	if req.SingleSegment {
		return segment.PlanSingle(src.Duration)
	}
	return segment.Plan(src.Duration, req.SegmentLength)
}

func (p *Pipeline) record(ctx context.Context, runID string, src domain.AudioSource, res domain.SegmentResult) {
	if p.recorder == nil || res.Cached || src.Hash == "" {
		return
	}
	key := p.segments.Key(src, res.Segment)
	if err := p.recorder.RecordSegment(context.WithoutCancel(ctx), runID, src.Name, key, res); err != nil {
		p.logger.WithError(err).Warn("failed to record segment in ledger")
	}
}

func exportError(err error) error {
	return &domain.PipelineError{
		Stage:   "exporting",
		Message: "failed to write transcript",
		Err:     err,
	}
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
