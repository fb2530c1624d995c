package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/suPer8Hu/chat-relay/internal/chat"
)

const wsWriteTimeout = 10 * time.Second

// wsRequest is one client frame. Type is "chat" (default) or "title".
type wsRequest struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// wsSink writes events as JSON text frames.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Emit(e chat.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// ChatWS serves sessions over one websocket. Frames are handled one at a time:
// one frame sent while a session runs is queued behind it, further ones are
// rejected as busy. The socket is read continuously, so closing it cancels the
// running session.
func (h *Handler) ChatWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := &wsSink{conn: conn}
	reqs := make(chan wsRequest, 1)
	go func() {
		defer cancel()
		defer close(reqs)
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) {
					continue
				}
				return
			}
			select {
			case reqs <- req:
			default:
				if err := sink.Emit(chat.ErrorEvent(msgBusy)); err != nil {
					return
				}
			}
		}
	}()

	for req := range reqs {
		h.serveWS(ctx, sink, req)
		if ctx.Err() != nil {
			return
		}
	}
}

func (h *Handler) serveWS(ctx context.Context, sink *wsSink, req wsRequest) {
	log := h.Log.With().Str("transport", "ws").Str("conversation_id", req.ConversationID).Logger()
	switch req.Type {
	case "", "chat":
		sess, err := h.ChatSvc.BeginChat(req.ConversationID, req.Message)
		if err != nil {
			_ = sink.Emit(chat.ErrorEvent(wsRejection(err)))
			return
		}
		if err := sess.Run(ctx, sink); err != nil {
			log.Debug().Err(err).Msg("chat stream ended without commit")
		}
	case "title":
		sess, err := h.ChatSvc.BeginTitle(req.Message, req.ConversationID)
		if err != nil {
			_ = sink.Emit(chat.ErrorEvent(wsRejection(err)))
			return
		}
		if _, err := sess.Run(ctx, sink); err != nil {
			log.Debug().Err(err).Msg("title stream ended without title")
		}
	default:
		_ = sink.Emit(chat.ErrorEvent("type inconnu: " + req.Type))
	}
}

func wsRejection(err error) string {
	switch {
	case errors.Is(err, chat.ErrValidation):
		return validationMessage(err)
	case errors.Is(err, chat.ErrConversationBusy):
		return msgBusy
	case errors.Is(err, chat.ErrNotFound):
		return msgNotFound
	default:
		return chat.RelayFailureMessage
	}
}
