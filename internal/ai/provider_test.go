package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(chunks <-chan string, errs <-chan error) ([]string, error) {
	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	return got, <-errs
}

func TestOllamaStreamChat(t *testing.T) {
	var req ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo<|end|>"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	got, err := drain(p.StreamChat(context.Background(),
		[]Message{{Role: "user", Content: "Hi"}},
		Options{Temperature: 0.8, MaxTokens: 4000}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo<|end|>"}, got)

	assert.Equal(t, "kai", req.Model)
	assert.True(t, req.Stream)
	assert.Equal(t, 0.8, req.Options.Temperature)
	assert.Equal(t, 4000, req.Options.NumPredict)
	assert.Equal(t, []Message{{Role: "user", Content: "Hi"}}, req.Messages)
}

func TestOllamaStreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	got, err := drain(NewOllamaProvider(srv.URL, "kai").StreamChat(context.Background(), nil, Options{}))
	assert.Equal(t, []string{"a"}, got)
	assert.EqualError(t, err, "model not found")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	_, err = drain(NewOllamaProvider(down.URL, "kai").StreamChat(context.Background(), nil, Options{}))
	assert.Error(t, err)
}

func TestOpenRouterStreamChat(t *testing.T) {
	var req openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "relay", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Greeting \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Exchange.\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "openrouter/auto", "", "relay")
	got, err := drain(p.StreamChat(context.Background(),
		[]Message{{Role: "user", Content: "title?"}},
		Options{Temperature: 0.7, MaxTokens: 50}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Greeting ", "Exchange."}, got)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 50, req.MaxTokens)
}

func TestOpenRouterRequiresKey(t *testing.T) {
	_, err := drain(NewOpenRouterProvider("", "", "m", "", "").StreamChat(context.Background(), nil, Options{}))
	assert.Error(t, err)
}

func TestStreamStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	chunks, errs := NewOllamaProvider(srv.URL, "kai").StreamChat(ctx, nil, Options{})
	assert.Equal(t, "a", <-chunks)
	cancel()
	for range chunks {
	}
	assert.Error(t, <-errs)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Ollama ", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})
	p, err := reg.Get(context.Background(), "OLLAMA", "llama3")
	require.NoError(t, err)
	assert.Equal(t, "llama3", p.(*OllamaProvider).Model)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"ollama"}, reg.Names())
}

func TestStreamWithoutEndMarkerIsTruncated(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"Hel"},"done":false}`)
	}))
	defer ollama.Close()

	got, err := drain(NewOllamaProvider(ollama.URL, "kai").StreamChat(context.Background(), nil, Options{}))
	assert.Equal(t, []string{"Hel"}, got)
	assert.ErrorIs(t, err, ErrTruncated)

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
	}))
	defer router.Close()

	got, err = drain(NewOpenRouterProvider(router.URL, "key", "m", "", "").StreamChat(context.Background(), nil, Options{}))
	assert.Equal(t, []string{"Hel"}, got)
	assert.ErrorIs(t, err, ErrTruncated)
}
