// Cerebras Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Serves the fast llama models Cerebras hosts

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const cerebrasBaseURL = "https://api.cerebras.ai/v1"

// CerebrasProvider implements the Provider interface for Cerebras.
// Cerebras serves open models on an OpenAI-compatible endpoint with very low
// latency, which suits the planning step where a fast small model is enough.
type CerebrasProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewCerebrasProvider creates a new Cerebras provider.
func NewCerebrasProvider(apiKey, model string, maxTokens uint32, temperature float32) *CerebrasProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = cerebrasBaseURL

	return &CerebrasProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *CerebrasProvider) Name() string {
	return "cerebras"
}

// Model returns the current model.
func (p *CerebrasProvider) Model() string {
	return p.model
}

// Complete sends a completion request.
func (p *CerebrasProvider) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Content: content, Usage: usage}, nil
}

// Verify CerebrasProvider implements Provider
var _ Provider = (*CerebrasProvider)(nil)
