package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/doc-assistant/internal/domain"
)

const (
	// DefaultBaseURL points at a llama.cpp server on the local machine.
	DefaultBaseURL = "http://127.0.0.1:8080/v1"
	// DefaultModel is the instruct model the prompt template is written for.
	DefaultModel = "phi-3.5-mini-instruct"
	// DefaultMaxTokens caps new tokens per completion.
	DefaultMaxTokens = 400
)

// Client streams completions from an OpenAI-compatible local inference server
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	logger     *domain.Logger
}

// Config configures the client
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string // optional; most local servers ignore it
	MaxTokens int
	// HTTPClient overrides the transport, mainly for tests
	HTTPClient *http.Client
	Logger     *domain.Logger
}

// Request represents the completion request body
type Request struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	MaxTokens int      `json:"max_tokens"`
	Stream    bool     `json:"stream"`
	Stop      []string `json:"stop,omitempty"`
}

// Response represents one streamed completion frame
type Response struct {
	ID      string     `json:"id"`
	Choices []Choice   `json:"choices"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Text         string `json:"text"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in chat-style streaming responses
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// ErrorBody is an error reported inside the stream
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *ErrorBody) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return e.Message
}

// NewClient creates a new inference client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		// No overall timeout: a CPU-bound completion can take minutes.
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 5 * time.Minute,
			},
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = domain.DefaultLogger
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.WithOperation("llm"),
	}
}

// Generate runs one completion and returns the generated text. Each token is
// passed to onToken when it is non-nil. A done ctx stops generation at the
// next token; the partial text is returned with a cancelled error.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest, onToken func(string)) (string, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return "", domain.InferenceError("Failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.InferenceError("Failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.CancelledError("generation cancelled", ctx.Err())
		}
		return "", domain.InferenceError("Failed to reach inference server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.InferenceError(fmt.Sprintf("inference server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))), nil)
	}

	text, tokens, err := c.consume(ctx, resp.Body, onToken)
	c.logger.Debug().
		Int("tokens", tokens).
		Bool("streaming", onToken != nil).
		Dur("elapsed", time.Since(start)).
		Msg("Completion finished")
	return text, err
}

// consume reads the SSE stream, forwarding tokens and checking ctx between them.
func (c *Client) consume(ctx context.Context, body io.Reader, onToken func(string)) (string, int, error) {
	parser := NewStreamParser(body)
	var out strings.Builder
	tokens := 0

	for {
		if err := ctx.Err(); err != nil {
			return out.String(), tokens, domain.CancelledError("generation cancelled", err)
		}

		chunk, err := parser.Next()
		if err != nil {
			if ctx.Err() != nil {
				return out.String(), tokens, domain.CancelledError("generation cancelled", ctx.Err())
			}
			var streamErr *ErrorBody
			if errors.As(err, &streamErr) {
				return out.String(), tokens, domain.InferenceError("inference server reported an error", err)
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return out.String(), tokens, domain.InferenceError("stream ended before completion", err)
			}
			return out.String(), tokens, domain.InferenceError("Failed to parse stream", err)
		}

		if chunk.Content != "" {
			tokens++
			out.WriteString(chunk.Content)
			if onToken != nil {
				onToken(chunk.Content)
			}
		}

		if chunk.Done {
			return out.String(), tokens, nil
		}
	}
}

func (c *Client) buildRequest(req domain.GenerateRequest) *Request {
	return &Request{
		Model:     c.model,
		Prompt:    BuildPrompt(req),
		MaxTokens: c.maxTokens,
		Stream:    true,
		Stop:      []string{endMarker},
	}
}
