package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/chat-relay/internal/common"
)

type createConversationReq struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	conv, err := h.ChatSvc.CreateConversation(req.ConversationID, req.Title)
	if err != nil {
		h.failFor(c, err)
		return
	}
	common.OK(c, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	common.OK(c, h.ChatSvc.ListConversations())
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.ChatSvc.GetConversation(c.Param("id"))
	if err != nil {
		h.failFor(c, err)
		return
	}
	common.OK(c, conv)
}

type renameReq struct {
	Title string `json:"title"`
}

func (h *Handler) RenameConversation(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	conv, err := h.ChatSvc.RenameConversation(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		h.failFor(c, err)
		return
	}
	common.OK(c, conv)
}

// DeleteConversation waits for an in-flight session on the conversation.
func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		h.failFor(c, err)
		return
	}
	common.OK(c, gin.H{"success": true})
}
