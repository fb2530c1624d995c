package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
)

type chatReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// Chat relays one generation as an SSE stream. Every rejection is answered as
// plain JSON before the stream is opened.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.ChatSvc.BeginChat(req.ConversationID, req.Message)
	if err != nil {
		h.failFor(c, err)
		return
	}

	stream := h.openStream(c)
	defer stream.Close()

	if err := sess.Run(c.Request.Context(), stream); err != nil {
		h.Log.Debug().Err(err).
			Str("request_id", middleware.RequestIDFrom(c)).
			Str("conversation_id", req.ConversationID).
			Msg("chat stream ended without commit")
	}
}

type titleReq struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// GenerateTitle streams a title inference for message. When conversationId
// names a server conversation the cleaned title is committed to it.
func (h *Handler) GenerateTitle(c *gin.Context) {
	var req titleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.ChatSvc.BeginTitle(req.Message, strings.TrimSpace(req.ConversationID))
	if err != nil {
		h.failFor(c, err)
		return
	}

	stream := h.openStream(c)
	defer stream.Close()

	if _, err := sess.Run(c.Request.Context(), stream); err != nil {
		h.Log.Debug().Err(err).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("title stream ended without title")
	}
}
