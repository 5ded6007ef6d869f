package db

import (
	"context"

	"github.com/google/uuid"
)

type CreateContinuationLinkArgs struct {
	ParentSessionID string
	ChildSessionID  string
	Reason          string
	Depth           int64
	ContextSummary  string
}

func (q *Queries) CreateContinuationLink(ctx context.Context, arg CreateContinuationLinkArgs) (ContinuationLink, error) {
	l := &ContinuationLink{
		ParentSessionID: arg.ParentSessionID,
		ChildSessionID:  arg.ChildSessionID,
		Reason:          arg.Reason,
		Depth:           arg.Depth,
		ContextSummary:  arg.ContextSummary,
	}
	l.ID = uuid.New().String()
	err := q.db.WithContext(ctx).Create(l).Error
	if err != nil {
		return *l, err
	}
	return *l, nil
}

func (q *Queries) GetContinuationLinkByParent(ctx context.Context, parentSessionID string) (ContinuationLink, error) {
	var l ContinuationLink
	err := q.db.WithContext(ctx).Where("parent_session_id = ?", parentSessionID).First(&l).Error
	return l, err
}

func (q *Queries) GetContinuationLinkByChild(ctx context.Context, childSessionID string) (ContinuationLink, error) {
	var l ContinuationLink
	err := q.db.WithContext(ctx).Where("child_session_id = ?", childSessionID).First(&l).Error
	return l, err
}
