package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// OpenRouterProvider streams OpenAI-style chat completions over SSE.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	// SiteURL and AppName identify the caller on openrouter.ai rankings.
	SiteURL string
	AppName string
	Client  *http.Client
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{},
	}
}

type openRouterChatReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openRouterDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var sseDone = []byte("[DONE]")

func (p *OpenRouterProvider) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.APIKey)
	h.Set("Accept", "text/event-stream")
	if p.SiteURL != "" {
		h.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		h.Set("X-Title", p.AppName)
	}
	return h
}

func (p *OpenRouterProvider) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	return stream(ctx, func(emit func(string) error) error {
		if strings.TrimSpace(p.APIKey) == "" {
			return errors.New("openrouter: api key is required")
		}
		model := strings.TrimSpace(p.Model)
		if model == "" {
			return errors.New("openrouter: model is required")
		}

		req := openRouterChatReq{
			Model:       model,
			Messages:    append([]Message{}, messages...),
			Stream:      true,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		}
		body, err := postJSON(ctx, p.Client, strings.TrimRight(p.BaseURL, "/")+"/chat/completions", req, p.header())
		if err != nil {
			return errors.Wrap(err, "openrouter")
		}
		defer body.Close()

		done := false
		err = eachLine(body, func(line []byte) (bool, error) {
			// comments such as ": OPENROUTER PROCESSING" keep the connection alive
			data, ok := bytes.CutPrefix(line, []byte("data:"))
			if !ok {
				return false, nil
			}
			data = bytes.TrimSpace(data)
			if bytes.Equal(data, sseDone) {
				done = true
				return true, nil
			}
			var d openRouterDelta
			if err := json.Unmarshal(data, &d); err != nil {
				return false, errors.Wrap(err, "openrouter: decode chunk")
			}
			if d.Error != nil && d.Error.Message != "" {
				return false, errors.New(d.Error.Message)
			}
			if len(d.Choices) == 0 {
				return false, nil
			}
			return false, emit(d.Choices[0].Delta.Content)
		})
		if err == nil && !done && ctx.Err() == nil {
			err = errors.Wrap(ErrTruncated, "openrouter: no [DONE] marker")
		}
		return err
	})
}
