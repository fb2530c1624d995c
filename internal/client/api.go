package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

// HTTPError is a request the server rejected before opening a stream.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// API talks to the relay server.
type API struct {
	BaseURL string
	HTTP    *http.Client
}

func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		// streams are bounded by ctx, not by a client timeout
		hc = &http.Client{}
	}
	return &API{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// Chat sends message on conversationID and calls fn for each streamed event.
func (a *API) Chat(ctx context.Context, conversationID, message string, fn func(chat.Event) error) error {
	return a.stream(ctx, "/api/chat", map[string]string{
		"message":        message,
		"conversationId": conversationID,
	}, fn)
}

// GenerateTitle streams a title inference for seed. conversationID may be empty.
func (a *API) GenerateTitle(ctx context.Context, seed, conversationID string, fn func(chat.Event) error) error {
	body := map[string]string{"message": seed}
	if conversationID != "" {
		body["conversationId"] = conversationID
	}
	return a.stream(ctx, "/api/generate-title", body, fn)
}

func (a *API) stream(ctx context.Context, path string, body any, fn func(chat.Event) error) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeHTTPError(resp)
	}
	return ReadEvents(resp.Body, fn)
}

func decodeHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &HTTPError{Status: resp.StatusCode, Message: msg}
}
