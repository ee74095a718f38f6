// Package ai provides the gateway to the external language-model provider.
// It isolates retry, backoff and failure translation; everything above it
// speaks provider-neutral messages.
package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	errs "github.com/usetaskchat/taskchat/internal/errors"
)

// Config holds the model provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxRetries     int
	RetryBaseDelay time.Duration
	Temperature    float32
	MaxTokens      int
}

// DefaultConfig returns the default configuration. The base URL is any
// OpenAI-compatible endpoint, so Groq or DeepSeek work unchanged.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		Temperature:    0.7,
		MaxTokens:      1000,
	}
}

// Gateway is a thin retrying client to the model provider. No caching: every
// call is a fresh request.
type Gateway struct {
	client *openai.Client
	config *Config
}

// NewGateway creates a new Gateway.
func NewGateway(cfg *Config) *Gateway {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Gateway{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Decide submits the system prompt, bounded history, new user message and
// tool schemas. The model may answer with plain text or with tool calls.
func (g *Gateway) Decide(ctx context.Context, systemPrompt string, history []Message, newMessage string, tools []ToolDefinition) (*Decision, error) {
	messages := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(newMessage))

	req := openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    convertMessages(messages),
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
		req.ToolChoice = "auto"
	}

	var decision *Decision
	err := g.doWithRetry(ctx, func() error {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty chat response")
		}
		msg := resp.Choices[0].Message
		decision = &Decision{Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			decision.ToolCalls = append(decision.ToolCalls, ToolCallRequest{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// Respond produces the user-facing reply from the extended history that
// includes tool results.
func (g *Gateway) Respond(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    convertMessages(messages),
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
	}

	var result string
	err := g.doWithRetry(ctx, func() error {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// RespondStream streams the reply, invoking onDelta for each text fragment,
// and returns the accumulated text. The stream itself is not retried once
// tokens start flowing; only opening the stream goes through the retry loop.
func (g *Gateway) RespondStream(ctx context.Context, messages []Message, onDelta func(string) error) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    convertMessages(messages),
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
		Stream:      true,
	}

	var stream *openai.ChatCompletionStream
	err := g.doWithRetry(ctx, func() error {
		var err error
		stream, err = g.client.CreateChatCompletionStream(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Mid-stream failure: the caller decides what to do with
			// the partial text.
			return string(full), errs.UpstreamUnavailable("model stream interrupted", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full = append(full, delta...)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				// Client gone. Keep what was produced so the turn can
				// still be persisted.
				return string(full), err
			}
		}
	}
	return string(full), nil
}

// doWithRetry executes fn, retrying transient upstream failures with
// exponential backoff. Non-retryable errors propagate immediately.
func (g *Gateway) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return errs.UpstreamUnavailable("model request canceled", ctx.Err())
		}
		if !isRetryable(err) {
			return errs.UpstreamRejected("model provider rejected the request", err)
		}

		if attempt < g.config.MaxRetries-1 {
			waitTime := g.config.RetryBaseDelay << attempt
			slog.Debug("model request failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("wait_time", waitTime),
				slog.String("error", err.Error()))
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return errs.UpstreamUnavailable("model request canceled", ctx.Err())
			}
		}
	}
	return errs.UpstreamUnavailable("model provider unavailable after retries", lastErr)
}

// isRetryable reports whether an upstream error is transient: rate limits
// and server-side failures retry, auth and malformed requests do not.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Network-level failures are transient.
	return true
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func convertTools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
