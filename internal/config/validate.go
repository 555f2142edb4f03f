package config

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/language"

	"audio-digest/internal/domain"
)

// Validate checks enumerations and numeric ranges. Credentials and model
// files are checked by the preflight diagnostics instead.
func (c Config) Validate() error {
	var problems []string
	oneOf := func(field, value string, allowed []string) {
		if !lo.Contains(allowed, value) {
			problems = append(problems, fmt.Sprintf("%s must be one of %s (got %q)", field, strings.Join(allowed, ", "), value))
		}
	}

	oneOf("transcription.backend", c.Transcription.Backend, Backends)
	oneOf("transcription.local.device", c.Transcription.Local.Device, Devices)
	oneOf("summary.backend", c.Summary.Backend, SummaryBackends)
	oneOf("output.mode", c.Output.Mode, WriteModes)
	oneOf("log.format", c.Log.Format, LogFormats)

	if err := ValidateLanguage(c.Transcription.Language); err != nil {
		problems = append(problems, err.Error())
	}

	t := c.Transcription
	if t.SegmentSeconds < 0 {
		problems = append(problems, "transcription.segment_seconds must be positive (0 selects the backend default)")
	}
	if t.MaxRepeats < 0 {
		problems = append(problems, "transcription.max_repeats must not be negative")
	}
	if t.PauseSeconds < 0 || t.TimeoutSeconds < 0 || c.Summary.TimeoutSeconds < 0 {
		problems = append(problems, "pause and timeout seconds must not be negative")
	}

	s := c.Summary
	if s.ChunkSize <= 0 {
		problems = append(problems, "summary.chunk_size must be positive")
	} else if s.Overlap < 0 || s.Overlap >= s.ChunkSize {
		problems = append(problems, "summary.overlap must be in [0, chunk_size)")
	}

	if strings.TrimSpace(c.Output.TranscriptPath) == "" {
		problems = append(problems, "output.transcript_path is required")
	}
	if strings.TrimSpace(c.Output.SummaryPath) == "" {
		problems = append(problems, "output.summary_path is required")
	}

	if len(problems) > 0 {
		return domain.ConfigError("config", strings.Join(problems, "; "), nil)
	}
	return nil
}

// ValidateLanguage accepts "auto" or a BCP 47 tag such as "pt" or "pt-BR".
func ValidateLanguage(lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return nil
	}
	if _, err := language.Parse(lang); err != nil {
		return fmt.Errorf("transcription.language %q is not a valid language tag", lang)
	}
	return nil
}
