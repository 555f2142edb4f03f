package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultChatBaseURL targets a local llama.cpp server.
	DefaultChatBaseURL = "http://localhost:8080/v1"
	DefaultChatModel   = "mistral-7b-instruct"
)

// ChatOptions configures an OpenAI-compatible /chat/completions client.
// It works with llama.cpp server, Ollama and hosted APIs alike.
type ChatOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatModel calls /chat/completions with one user message per prompt.
type ChatModel struct {
	opts   ChatOptions
	client *http.Client
}

// NewChatModel builds a chat client with defaults for empty options.
func NewChatModel(opts ChatOptions) *ChatModel {
	return NewChatModelForTests(opts, &http.Client{})
}

// NewChatModelForTests constructs a chat model with an injectable HTTP client.
func NewChatModelForTests(opts ChatOptions, client *http.Client) *ChatModel {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultChatBaseURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultChatModel
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &ChatModel{opts: opts, client: client}
}

// Name implements Model.
func (m *ChatModel) Name() string { return m.opts.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt and returns the first choice.
func (m *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       m.opts.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: m.opts.Temperature,
		MaxTokens:   m.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(m.opts.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
