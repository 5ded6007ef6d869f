package service

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/pkg/hertzx"
)

// GetBalance 查询余额
func (h *Handler) GetBalance(ctx context.Context, c *app.RequestContext) {
	owner, err := hertzx.ParamString(c, "ownerId")
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	balance, err := h.ledger.Balance(ctx, owner)
	if err != nil {
		hertzx.Errorf(c, "read balance: %v", err)
		return
	}
	recent, err := h.q.ListTransactionsByOwner(ctx, owner, 10)
	if err != nil {
		hertzx.Errorf(c, "list recent transactions: %v", err)
		return
	}
	hertzx.Data(c, BalanceResponse{OwnerID: owner, Balance: balance, Recent: recent})
}

// ListTransactions 查询流水
func (h *Handler) ListTransactions(ctx context.Context, c *app.RequestContext) {
	owner, err := hertzx.ParamString(c, "ownerId")
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	limit, err := hertzx.QueryInt(c, "limit")
	if err != nil {
		hertzx.Bad(c, "limit must be an integer")
		return
	}
	txns, err := h.q.ListTransactionsByOwner(ctx, owner, limit)
	if err != nil {
		hertzx.Errorf(c, "list transactions: %v", err)
		return
	}
	hertzx.Data(c, txns)
}

// Grant 充值/发放
func (h *Handler) Grant(ctx context.Context, c *app.RequestContext) {
	owner, err := hertzx.ParamString(c, "ownerId")
	if err != nil {
		hertzx.Badf(c, "%v", err)
		return
	}
	var req GrantRequest
	if err := c.BindJSON(&req); err != nil {
		hertzx.Badf(c, "invalid request body: %v", err)
		return
	}
	if req.Amount <= 0 {
		hertzx.Bad(c, "amount must be positive")
		return
	}
	reason := billing.ReasonPurchase
	if req.Reason == string(billing.ReasonPromo) {
		reason = billing.ReasonPromo
	}
	balance, _, err := h.ledger.Credit(ctx, owner, req.Amount, reason)
	if err != nil {
		hertzx.Errorf(c, "credit: %v", err)
		return
	}
	hertzx.Data(c, BalanceResponse{OwnerID: owner, Balance: balance})
}
