package db

import (
	"context"

	"github.com/google/uuid"
)

type CreateMessageArgs struct {
	SessionID string
	Role      string
	Content   string
	IsSummary bool
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageArgs) (Message, error) {
	m := &Message{
		SessionID: arg.SessionID,
		Role:      arg.Role,
		Content:   arg.Content,
		IsSummary: arg.IsSummary,
	}
	m.ID = uuid.New().String()
	err := q.db.WithContext(ctx).Create(m).Error
	if err != nil {
		return *m, err
	}
	return *m, nil
}

func (q *Queries) ListMessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	var messages []Message
	err := q.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
