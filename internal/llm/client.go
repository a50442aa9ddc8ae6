package llm

import (
	"context"
	"errors"
	"fmt"

	"courtbook/internal/entity"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// ErrNoPick is returned when the model answers without choosing an element.
var ErrNoPick = errors.New("model did not pick an element")

// Client asks a chat model which scanned element matches an intent when the
// known selectors for it all failed.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger

	history []entity.ActionRecord
	reasons map[int]string
}

// New creates a client for any OpenAI-compatible endpoint.
func New(apiKey, model, baseURL string, logger *zap.Logger, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	// OpenRouter, Groq and local servers need their own base URL.
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	return &Client{
		client: &client,
		model:  model,
		logger: logger,
	}
}

// Resolve returns the data-agent-id of the element the model picked.
func (c *Client) Resolve(ctx context.Context, intent string, state *entity.BrowserState) (int, error) {
	messages := ConstructMessages(intent, c.history, state)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Tools:       defineTools(),
		Temperature: openai.Opt[float64](0),
	})
	if err != nil {
		return 0, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, ErrNoPick
	}

	msg := resp.Choices[0].Message
	calls, err := ParseResponse(msg)
	if err != nil {
		return 0, err
	}

	id, reason, ok := pickedID(calls)
	if !ok {
		c.logger.Debug("model reply without pick", zap.String("content", msg.Content))
		return 0, ErrNoPick
	}
	c.logger.Info("model picked element",
		zap.String("intent", intent),
		zap.Int("id", id),
		zap.String("reason", reason))
	if c.reasons == nil {
		c.reasons = make(map[int]string)
	}
	c.reasons[id] = reason
	return id, nil
}

// RecordAttempt remembers how clicking a picked element went, so a retry for
// the same intent can steer the model away from it.
func (c *Client) RecordAttempt(intent string, id int, result string) {
	c.history = append(c.history, entity.ActionRecord{
		Intent:    intent,
		ElementID: id,
		Reasoning: c.reasons[id],
		Result:    result,
	})
}

// Reset forgets previous attempts. Call it whenever the page is scanned
// again, since element ids do not survive a scan.
func (c *Client) Reset() {
	c.history = nil
	c.reasons = nil
}
