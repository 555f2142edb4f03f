// Package segment plans the fixed-length windows a recording is transcribed in.
package segment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"audio-digest/internal/domain"
)

// Plan splits [0, duration) into ceil(duration/length) contiguous windows.
// Boundaries are computed in decimal so consecutive windows share exact edges.
func Plan(duration, length float64) ([]domain.Segment, error) {
	if length <= 0 {
		return nil, domain.ConfigError("planning", fmt.Sprintf("segment length must be positive, got %v", length), nil)
	}
	if duration < 0 {
		return nil, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "planning",
			Message: fmt.Sprintf("duration must be non-negative, got %v", duration),
		}
	}

	total := decimal.NewFromFloat(duration)
	step := decimal.NewFromFloat(length)
	count := int(total.Div(step).Ceil().IntPart())

	segments := make([]domain.Segment, 0, count)
	for i := 0; i < count; i++ {
		start := step.Mul(decimal.NewFromInt(int64(i)))
		end := decimal.Min(start.Add(step), total)
		segments = append(segments, domain.Segment{
			Index: i,
			Start: start.InexactFloat64(),
			End:   end.InexactFloat64(),
		})
	}
	return segments, nil
}

// PlanSingle is the short-audio mode: one window covering the whole file.
func PlanSingle(duration float64) ([]domain.Segment, error) {
	if duration < 0 {
		return nil, &domain.PipelineError{
			Kind:    domain.ErrProbe,
			Stage:   "planning",
			Message: fmt.Sprintf("duration must be non-negative, got %v", duration),
		}
	}
	if duration == 0 {
		return nil, nil
	}
	return []domain.Segment{{Index: 0, Start: 0, End: duration}}, nil
}
