package service

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sse"
	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/chat/continuation"
	"github.com/xiehqing/streamcore/chat/provider"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/chat/stream"
	"github.com/xiehqing/streamcore/pkg/hertzx"
	"github.com/xiehqing/streamcore/pkg/logs"
)

// StreamChat 流式对话
func (h *Handler) StreamChat(ctx context.Context, c *app.RequestContext) {
	var req StreamRequest
	if err := c.BindJSON(&req); err != nil {
		hertzx.Badf(c, "invalid request body: %v", err)
		return
	}
	owner := h.resolveOwner(ctx, c, req.OwnerID)
	if owner == "" {
		hertzx.Bad(c, "owner_id is required")
		return
	}
	if req.Prompt == "" {
		hertzx.Bad(c, "prompt is required")
		return
	}
	p, err := provider.ParseProvider(req.Provider)
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}

	c.SetStatusCode(http.StatusOK)
	sender := hertzx.NewSseSender(sse.NewStream(c))
	err = h.mux.Run(ctx, stream.StartRequest{
		OwnerID:   owner,
		Provider:  p,
		Model:     req.Model,
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
	}, func(f stream.Frame) error {
		return sender.Send(hertzx.BuildDataEvent(f))
	})
	if err != nil {
		// Headers are already out once the mux starts sending; only the
		// pre-flight failures can still change the status line.
		switch {
		case errors.Is(err, stream.ErrPaymentRequired):
			hertzx.PaymentRequired(c, "insufficient credits")
		case errors.Is(err, stream.ErrOwnerMismatch):
			hertzx.Abort(c, http.StatusForbidden, "session belongs to a different owner")
		case errors.Is(err, session.ErrNotActive):
			hertzx.Badf(c, "%v", err)
		default:
			logs.CtxErrorf(ctx, "stream failed: %v", err)
		}
	}
}

// ContinueChat 续聊：基于已完成会话生成摘要并开启子会话
func (h *Handler) ContinueChat(ctx context.Context, c *app.RequestContext) {
	var req ContinueRequest
	if err := c.BindJSON(&req); err != nil {
		hertzx.Badf(c, "invalid request body: %v", err)
		return
	}
	if req.ChatSessionID == "" {
		hertzx.Bad(c, "chat_session_id is required")
		return
	}
	preserve := true
	if req.PreserveContext != nil {
		preserve = *req.PreserveContext
	}

	result, err := h.continuations.Continue(ctx, req.ChatSessionID, req.Reason, preserve)
	if err != nil {
		switch {
		case errors.Is(err, continuation.ErrParentNotCompleted),
			errors.Is(err, continuation.ErrDepthExceeded):
			hertzx.Badf(c, "%v", err)
		case errors.Is(err, continuation.ErrAlreadyContinued):
			hertzx.Abort(c, http.StatusConflict, err.Error())
		default:
			logs.CtxErrorf(ctx, "continuation failed: %v", err)
			hertzx.Errorf(c, "continuation failed")
		}
		return
	}
	hertzx.Data(c, result)
}
