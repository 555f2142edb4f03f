package transcribe

import (
	"context"
	"strings"

	"audio-digest/internal/domain"
)

// Transcription is the text produced for one audio window plus any
// external command logs captured while producing it.
type Transcription struct {
	Text string
	Logs []domain.CommandLog
}

// Transcriber turns one short WAV file into text.
type Transcriber interface {
	// Backend names the implementation ("remote" or "local").
	Backend() string
	// Model identifies the model; together with Backend it keys the window cache.
	Model() string
	// Options fingerprints the language and decoding settings that change
	// the text produced for the same audio.
	Options() string
	Transcribe(ctx context.Context, wavPath string) (Transcription, error)
}

// languageTag is the language as it appears in an options fingerprint.
func languageTag(raw string) string {
	if lang := normalizeLanguage(raw); lang != "" {
		return strings.ToLower(lang)
	}
	return "auto"
}

// normalizeLanguage maps "auto" and empty language to no override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}
