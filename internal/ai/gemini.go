package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

type GeminiProvider struct {
	Model  string
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini: new client")
	}
	return &GeminiProvider{Model: model, client: client}, nil
}

func toGeminiContents(messages []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return out
}

// StreamChat streams candidate text parts as they arrive.
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	return stream(ctx, func(emit func(string) error) error {
		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(opts.Temperature)),
			MaxOutputTokens: int32(opts.MaxTokens),
		}
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.Model, toGeminiContents(messages), config) {
			if err != nil {
				return errors.Wrap(err, "gemini: stream")
			}
			if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil {
					continue
				}
				if err := emit(part.Text); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
