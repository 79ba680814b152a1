package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIProvider calls a chat completions endpoint through go-openai.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// NewOpenAIProvider creates a provider for cfg.Model.
func NewOpenAIProvider(cfg OpenAIConfig, log *slog.Logger) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if log == nil {
		log = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	log.Info("initializing completion provider", "model", cfg.Model, "baseURL", clientCfg.BaseURL)
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		log:    log,
	}, nil
}

// Model returns the model name requests are sent to.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.ReasoningEffort != "" {
		req.ReasoningEffort = opts.ReasoningEffort
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	p.log.Debug("requesting completion", "model", p.model, "messages", len(messages))
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		p.log.Error("completion request failed", "model", p.model, "error", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	p.log.Debug("received completion", "finishReason", choice.FinishReason, "inputTokens", resp.Usage.PromptTokens, "outputTokens", resp.Usage.CompletionTokens)
	return &Completion{
		Content:        strings.TrimSpace(choice.Message.Content),
		InputTokens:    resp.Usage.PromptTokens,
		OutputTokens:   resp.Usage.CompletionTokens,
		TimeUsed:       elapsed,
		ModelReasoning: choice.Message.ReasoningContent,
	}, nil
}
