package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

var errNoFlusher = errors.New("response writer does not support flushing")

// sseStream writes chat events as `data: <json>\n\n` frames. It implements
// chat.Sink; a failed write tells the session the client went away.
type sseStream struct {
	mu      sync.Mutex
	w       gin.ResponseWriter
	flusher http.Flusher
	stop    chan struct{}
	once    sync.Once
	closed  bool
}

// openStream sends the SSE headers and starts the heartbeat. Callers must Close it.
func (h *Handler) openStream(c *gin.Context) *sseStream {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	s := &sseStream{w: c.Writer, stop: make(chan struct{})}
	if f, ok := c.Writer.(http.Flusher); ok {
		s.flusher = f
	}
	// headers go out now so the client sees the stream open before the first token
	s.w.WriteHeaderNow()
	s.flush()

	if h.Heartbeat > 0 {
		go s.heartbeat(h.Heartbeat)
	}
	return s
}

func (s *sseStream) Emit(e chat.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flusher == nil {
		return errNoFlusher
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return errors.Wrap(err, "write event")
	}
	s.flusher.Flush()
	return nil
}

// heartbeat writes SSE comments, which clients skip.
func (s *sseStream) heartbeat(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if !s.closed {
				if _, err := fmt.Fprint(s.w, ": ping\n\n"); err == nil {
					s.flush()
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

func (s *sseStream) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func (s *sseStream) Close() {
	s.once.Do(func() {
		close(s.stop)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
}
