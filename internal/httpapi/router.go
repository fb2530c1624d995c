package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
)

type RouterOption func(*handlers.Handler)

// WithHeartbeat sets the SSE keep-alive interval; zero disables it.
func WithHeartbeat(d time.Duration) RouterOption {
	return func(h *handlers.Handler) { h.Heartbeat = d }
}

func NewRouter(svc *chat.Service, logger zerolog.Logger, opts ...RouterOption) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(svc, logger)
	for _, o := range opts {
		o(h)
	}

	r.GET("/ping", h.Ping)

	api := r.Group("/api")
	api.POST("/conversation", h.CreateConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversation/:id", h.GetConversation)
	api.PATCH("/conversation/:id", h.RenameConversation)
	api.DELETE("/conversation/:id", h.DeleteConversation)

	// streaming
	api.POST("/chat", h.Chat)
	api.POST("/generate-title", h.GenerateTitle)
	api.GET("/chat/ws", h.ChatWS)
	return r
}
