package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/nao1215/magicscraper/internal/model"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of Groq.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the model used for extraction.
	DefaultModel = "qwen-qwq-32b"
)

// Client asks a chat-completion model to extract company fields from page
// content. It is safe for concurrent use.
type Client struct {
	api             *openai.Client
	model           string
	baseURL         string
	httpClient      *http.Client
	timeout         time.Duration
	limiter         *rate.Limiter
	maxContentChars int
	logger          *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the OpenAI-compatible API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.model = name
		}
	}
}

// WithTimeout bounds a single completion call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRequestsPerSecond caps the call rate. Zero or less means unlimited.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithMaxContentChars truncates page content before it is sent.
// Zero or less sends the content whole.
func WithMaxContentChars(n int) Option {
	return func(c *Client) {
		c.maxContentChars = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the given API key.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		model:      DefaultModel,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    2 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	cfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(cfg)

	return c, nil
}

// Model returns the model name the client calls.
func (c *Client) Model() string {
	return c.model
}

// Extract asks the model for the requested fields of one page.
//
// Empty content yields a record with every field NotFound and no call.
// The returned record holds exactly the requested fields. On any failure
// the record is nil and the token count is 0; the caller keeps what it
// already has.
func (c *Client) Extract(ctx context.Context, content string, existing model.Record, fields []string) (model.Record, int, error) {
	if strings.TrimSpace(content) == "" {
		return model.NewRecord(fields), 0, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(Truncate(content, c.maxContentChars), existing.Project(fields), fields)

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, 0, ErrEmptyChoices
	}

	record, err := ParseRecord(resp.Choices[0].Message.Content, fields)
	if err != nil {
		return nil, 0, err
	}

	c.logger.Debug("extraction completed",
		"model", c.model,
		"total_tokens", resp.Usage.TotalTokens,
		"duration", time.Since(start),
		"missing", len(record.Missing(fields)),
	)
	return record, resp.Usage.TotalTokens, nil
}
