// Package oracle generates reading interpretations with an OpenAI-compatible
// chat completion API.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/arcana-app/arcana/internal/domain"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("interpreter: no API key configured")

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("interpreter: empty completion")

const systemPrompt = "You are a thoughtful tarot reader. Interpret the spread for the querent's " +
	"intention in warm, grounded language. Address each position briefly, then give a short synthesis. " +
	"Never make medical, legal, or financial promises."

// Config controls the chat completion call.
type Config struct {
	APIKey      string
	BaseURL     string // empty uses the OpenAI default
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// DefaultConfig returns production defaults (API key left empty).
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   900,
		Temperature: 0.8,
		Timeout:     20 * time.Second,
	}
}

// OpenAI implements domain.Interpreter.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

var _ domain.Interpreter = (*OpenAI)(nil)

// New creates an interpreter. Without an API key every call fails with
// ErrNotConfigured, which callers treat like any other generation failure.
func New(cfg Config) *OpenAI {
	o := &OpenAI{cfg: cfg}
	if cfg.APIKey != "" {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		o.client = openai.NewClientWithConfig(clientCfg)
	}
	return o
}

// Interpret asks the model for a reading. The call is bounded by cfg.Timeout.
func (o *OpenAI) Interpret(ctx context.Context, req domain.InterpretationRequest) (string, error) {
	if o.client == nil {
		return "", ErrNotConfigured
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// BuildPrompt renders the user message for a spread.
func BuildPrompt(req domain.InterpretationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spread: %s\n", req.Spread.Name)
	fmt.Fprintf(&b, "Intention: %s\n\nCards:\n", req.Intention)
	for _, c := range req.Cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
		}
		fmt.Fprintf(&b, "%d. %s: %s (%s), keywords: %s\n",
			c.Position+1, c.PositionName, c.Card.Name, orientation, strings.Join(c.Keywords, ", "))
	}
	return b.String()
}
