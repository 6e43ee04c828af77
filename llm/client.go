// Client - Simple wrapper around providers.

package llm

import (
	"context"
)

// Client wraps a Provider with a prompt-in, text-out interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Complete sends a single user prompt and returns just the content.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	response, err := c.provider.Complete(ctx, Request{
		Messages:  []ChatMessage{UserMessage(prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// CompleteWithSystem sends a system prompt plus user prompt.
func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	response, err := c.provider.Complete(ctx, Request{
		Messages:  []ChatMessage{SystemMessage(system), UserMessage(prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
