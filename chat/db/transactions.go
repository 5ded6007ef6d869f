package db

import (
	"context"
)

func (q *Queries) ListTransactionsBySession(ctx context.Context, sessionID string) ([]Transaction, error) {
	var txns []Transaction
	err := q.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []Transaction
	err := q.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (q *Queries) CountOverdraftTransactions(ctx context.Context) (int64, error) {
	var cnt int64
	err := q.db.WithContext(ctx).Model(&Transaction{}).
		Where("overdraft = ?", true).
		Count(&cnt).Error
	return cnt, err
}

func (q *Queries) ListNegativeAccounts(ctx context.Context) ([]CreditAccount, error) {
	var accounts []CreditAccount
	err := q.db.WithContext(ctx).
		Where("balance < 0").
		Find(&accounts).Error
	return accounts, err
}
