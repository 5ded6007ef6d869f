package service

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/chat/continuation"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/chat/stream"
	"github.com/xiehqing/streamcore/pkg/jwtx"
)

type Handler struct {
	mux           *stream.Mux
	sessions      session.Service
	continuations continuation.Service
	ledger        *billing.Ledger
	q             db.Querier
	jwtCfg        jwtx.Config
}

func NewHandler(mux *stream.Mux, sessions session.Service, continuations continuation.Service, ledger *billing.Ledger, q db.Querier, jwtCfg jwtx.Config) *Handler {
	return &Handler{
		mux:           mux,
		sessions:      sessions,
		continuations: continuations,
		ledger:        ledger,
		q:             q,
		jwtCfg:        jwtCfg,
	}
}

func (h *Handler) RegisterRoutes(hertz *server.Hertz) {
	api := hertz.Group("/api")

	chat := api.Group("/chat")
	chat.POST("/stream", h.StreamChat)
	chat.POST("/continue", h.ContinueChat)
	chat.GET("/sessions", h.ListSessions)
	chat.GET("/sessions/:id", h.GetSession)
	chat.GET("/sessions/:id/messages", h.ListMessages)

	credits := api.Group("/credits")
	credits.GET("/:ownerId", h.GetBalance)
	credits.GET("/:ownerId/transactions", h.ListTransactions)
	credits.POST("/:ownerId/grant", h.Grant)
}

// resolveOwner prefers the bearer token identity; requests without a token
// fall back to the explicit owner id (internal callers, local dev).
func (h *Handler) resolveOwner(_ context.Context, c *app.RequestContext, fallback string) string {
	auth := string(c.GetHeader("Authorization"))
	if token := strings.TrimPrefix(auth, "Bearer "); token != auth {
		if owner, err := jwtx.OwnerFromToken(h.jwtCfg.SigningKey, token); err == nil {
			return owner
		}
	}
	return fallback
}
