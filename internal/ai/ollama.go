package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// OllamaProvider streams from a local Ollama server's /api/chat endpoint, which
// answers with one JSON record per line.
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "kai"
	}
	// no client timeout; ctx bounds the stream
	return &OllamaProvider{BaseURL: baseURL, Model: model, Client: &http.Client{}}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatReq struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaRecord struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	return stream(ctx, func(emit func(string) error) error {
		req := ollamaChatReq{
			Model:    p.Model,
			Messages: append([]Message{}, messages...),
			Stream:   true,
			Options:  ollamaOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
		}
		body, err := postJSON(ctx, p.Client, strings.TrimRight(p.BaseURL, "/")+"/api/chat", req, nil)
		if err != nil {
			return errors.Wrap(err, "ollama")
		}
		defer body.Close()

		done := false
		err = eachLine(body, func(line []byte) (bool, error) {
			var rec ollamaRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return false, errors.Wrap(err, "ollama: decode record")
			}
			if rec.Error != "" {
				return false, errors.New(rec.Error)
			}
			if err := emit(rec.Message.Content); err != nil {
				return false, err
			}
			done = rec.Done
			return done, nil
		})
		if err == nil && !done && ctx.Err() == nil {
			err = errors.Wrap(ErrTruncated, "ollama: no done record")
		}
		return err
	})
}
