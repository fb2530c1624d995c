package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/common"
)

const (
	msgNotFound = "Conversation non trouvée"
	msgBusy     = "Une réponse est déjà en cours pour cette conversation"
)

type Handler struct {
	ChatSvc *chat.Service
	Log     zerolog.Logger
	// Heartbeat is the interval of SSE comment lines keeping idle streams open.
	Heartbeat time.Duration

	upgrader websocket.Upgrader
}

func NewHandler(svc *chat.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		ChatSvc:   svc,
		Log:       logger,
		Heartbeat: 15 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// same policy as CORS
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// failFor maps a service error to a JSON response. Only valid before a stream
// has been opened.
func (h *Handler) failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		common.Fail(c, http.StatusBadRequest, 10002, validationMessage(err))
	case errors.Is(err, chat.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, msgNotFound)
	case errors.Is(err, chat.ErrConversationBusy):
		common.Fail(c, http.StatusConflict, 40900, msgBusy)
	case errors.Is(err, chat.ErrCanceled):
		// client is gone
		c.Abort()
	default:
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// validationMessage returns the detail a validation error was wrapped with.
func validationMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+chat.ErrValidation.Error())
}
