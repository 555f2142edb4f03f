package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"audio-digest/internal/domain"
)

const (
	// DefaultRemoteBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultRemoteBaseURL = "https://api.groq.com/openai/v1"
	// DefaultRemoteModel is the turbo large-v3 whisper model served by Groq.
	DefaultRemoteModel = "whisper-large-v3-turbo"

	maxErrorBody = 512
)

// RemoteOptions configures an OpenAI-compatible /audio/transcriptions client.
type RemoteOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Language    string
	Temperature float64
}

// RemoteTranscriber sends each window to a hosted speech-to-text API.
type RemoteTranscriber struct {
	opts   RemoteOptions
	client *http.Client
}

// NewRemoteTranscriber builds a client with defaults for empty options.
func NewRemoteTranscriber(opts RemoteOptions) *RemoteTranscriber {
	return NewRemoteTranscriberForTests(opts, &http.Client{})
}

// NewRemoteTranscriberForTests constructs a remote transcriber with an injectable HTTP client.
func NewRemoteTranscriberForTests(opts RemoteOptions, client *http.Client) *RemoteTranscriber {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultRemoteBaseURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultRemoteModel
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &RemoteTranscriber{opts: opts, client: client}
}

// Backend implements Transcriber.
func (r *RemoteTranscriber) Backend() string { return "remote" }

// Model implements Transcriber.
func (r *RemoteTranscriber) Model() string { return r.opts.Model }

// Options implements Transcriber.
func (r *RemoteTranscriber) Options() string {
	return fmt.Sprintf("lang=%s tp=%s", languageTag(r.opts.Language), strconv.FormatFloat(r.opts.Temperature, 'f', -1, 64))
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads wavPath as multipart form data and returns the text field.
func (r *RemoteTranscriber) Transcribe(ctx context.Context, wavPath string) (Transcription, error) {
	if strings.TrimSpace(r.opts.APIKey) == "" {
		return Transcription{}, domain.ConfigError("transcribing", "remote transcription requires an API key (GROQ_API_KEY)", nil)
	}

	body, contentType, err := r.buildForm(wavPath)
	if err != nil {
		return Transcription{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return Transcription{}, fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Transcription{}, fmt.Errorf("transcription http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcription{}, fmt.Errorf("decode transcription response: %w", err)
	}
	return Transcription{Text: strings.TrimSpace(out.Text)}, nil
}

func (r *RemoteTranscriber) buildForm(wavPath string) (*bytes.Buffer, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", fmt.Errorf("open segment audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"model", r.opts.Model},
		{"response_format", "json"},
		{"temperature", strconv.FormatFloat(r.opts.Temperature, 'f', -1, 64)},
	}
	if lang := normalizeLanguage(r.opts.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", kv[0], err)
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("copy segment audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart form: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}
