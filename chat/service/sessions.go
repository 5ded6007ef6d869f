package service

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/pkg/hertzx"
	"github.com/xiehqing/streamcore/pkg/resp"
	"gorm.io/gorm"
)

// ListSessions 分页查询会话列表
func (h *Handler) ListSessions(ctx context.Context, c *app.RequestContext) {
	owner := h.resolveOwner(ctx, c, c.Query("ownerId"))
	if owner == "" {
		hertzx.Bad(c, "ownerId is required")
		return
	}
	pageable, err := hertzx.ParsePageable(c)
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	sessions, total, err := h.sessions.PageByOwner(ctx, owner, pageable)
	if err != nil {
		hertzx.Errorf(c, "list sessions: %v", err)
		return
	}
	hertzx.Data(c, resp.NewPageEntity(total, pageable.PageNo, pageable.PageSize, sessions))
}

// GetSession 查询会话
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	id, err := hertzx.ParamString(c, "id")
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	sess, err := h.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hertzx.Abort(c, 404, "session not found")
			return
		}
		hertzx.Errorf(c, "get session: %v", err)
		return
	}
	hertzx.Data(c, sess)
}

// ListMessages 查询会话消息
func (h *Handler) ListMessages(ctx context.Context, c *app.RequestContext) {
	id, err := hertzx.ParamString(c, "id")
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	messages, err := h.q.ListMessagesBySession(ctx, id)
	if err != nil {
		hertzx.Errorf(c, "list messages: %v", err)
		return
	}
	hertzx.Data(c, messages)
}
