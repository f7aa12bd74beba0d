// Package llm is the boundary to the text-generation service used for
// customer summaries.
package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in chat requests.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Client interface {
	Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)
}

type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage is token accounting reported by the service, zero when absent.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)

func (f ClientFunc) Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error) {
	return f(ctx, messages, options)
}
