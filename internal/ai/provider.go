package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the generation knobs forwarded to the model backend.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider produces a lazy, finite stream of text fragments for a message sequence.
// It returns immediately with two channels; both are closed when generation ends.
// At most one error is sent, and only after the last chunk.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error)

func (f ProviderFunc) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	return f(ctx, messages, opts)
}
