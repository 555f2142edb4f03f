// Package summarize condenses a long transcript with a bounded-context model
// using a map step per chunk and a single combine step.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"audio-digest/internal/domain"
)

const (
	DefaultChunkSize = 3000
	DefaultOverlap   = 200
)

// Options configures chunking, prompts and per-call timeout.
type Options struct {
	ChunkSize       int
	Overlap         int
	MapTemplate     string
	CombineTemplate string
	Timeout         time.Duration
	// OnChunk is called after each map call with the 1-based position.
	OnChunk func(done, total int)
}

// Summarizer runs the map/reduce summary over one transcript.
type Summarizer struct {
	splitter Splitter
	model    Model
	mapP     Prompt
	combineP Prompt
	timeout  time.Duration
	onChunk  func(done, total int)
	logger   logrus.FieldLogger
}

// New validates options and builds a summarizer.
func New(model Model, opts Options, logger logrus.FieldLogger) (*Summarizer, error) {
	if opts.ChunkSize <= 0 {
		return nil, domain.ConfigError("summarizing", "chunk size must be positive", nil)
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		return nil, domain.ConfigError("summarizing", "chunk overlap must be in [0, chunk size)", nil)
	}
	if opts.MapTemplate == "" {
		opts.MapTemplate = DefaultMapTemplate
	}
	if opts.CombineTemplate == "" {
		opts.CombineTemplate = DefaultCombineTemplate
	}

	mapP, err := ParsePrompt("map", opts.MapTemplate)
	if err != nil {
		return nil, err
	}
	combineP, err := ParsePrompt("combine", opts.CombineTemplate)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Summarizer{
		splitter: NewSplitter(opts.ChunkSize, opts.Overlap),
		model:    model,
		mapP:     mapP,
		combineP: combineP,
		timeout:  opts.Timeout,
		onChunk:  opts.OnChunk,
		logger:   logger,
	}, nil
}

// Summarize splits text, summarizes each chunk in order and combines the
// partials. Any model failure aborts with ErrSummarization. Cancellation is
// checked between calls.
func (s *Summarizer) Summarize(ctx context.Context, text string) (domain.FinalSummary, error) {
	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return domain.FinalSummary{}, domain.ConfigError("summarizing", "transcript has no text to summarize", nil)
	}
	s.logger.WithField("chunks", len(chunks)).Info("summarizing transcript")

	partials := make([]domain.PartialSummary, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return domain.FinalSummary{}, err
		}

		out, err := s.complete(ctx, s.mapP.Render(c.Text))
		if err != nil {
			return domain.FinalSummary{}, summarizationError(fmt.Sprintf("chunk %d/%d failed", c.Index+1, len(chunks)), err)
		}
		partials = append(partials, domain.PartialSummary{ChunkIndex: c.Index, Text: out})
		s.logger.WithField("chunk", c.Index+1).Debug("chunk summarized")
		if s.onChunk != nil {
			s.onChunk(c.Index+1, len(chunks))
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.FinalSummary{}, err
	}
	joined := strings.Join(lo.Map(partials, func(p domain.PartialSummary, _ int) string {
		return strings.TrimSpace(p.Text)
	}), "\n\n")

	combined, err := s.complete(ctx, s.combineP.Render(joined))
	if err != nil {
		return domain.FinalSummary{}, summarizationError("combine step failed", err)
	}

	return domain.FinalSummary{
		Text:   EnforceStructure(combined, partials),
		Chunks: len(chunks),
	}, nil
}

// complete runs one model call. A started call is not interrupted by
// cancellation; Summarize checks ctx between calls.
func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.model.Complete(ctx, prompt)
}

func summarizationError(msg string, err error) error {
	return &domain.PipelineError{
		Kind:    domain.ErrSummarization,
		Stage:   "summarizing",
		Message: msg,
		Err:     err,
	}
}
