package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/models"
	"gorm.io/gorm"
)

type CreateSessionArgs struct {
	ID        string
	OwnerID   string
	Provider  string
	Model     string
	Status    string
	Depth     int64
	StartedAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionArgs) (Session, error) {
	startedAt := arg.StartedAt
	s := &Session{
		OwnerID:   arg.OwnerID,
		Provider:  arg.Provider,
		Model:     arg.Model,
		Status:    arg.Status,
		Depth:     arg.Depth,
		StartedAt: &startedAt,
	}
	s.ID = arg.ID
	err := q.db.WithContext(ctx).Create(s).Error
	if err != nil {
		return *s, err
	}
	return *s, nil
}

func (q *Queries) GetSessionByID(ctx context.Context, id string) (Session, error) {
	var s Session
	err := q.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	return s, err
}

func (q *Queries) ListSessionsByOwner(ctx context.Context, ownerID string) ([]Session, error) {
	var sessions []Session
	err := q.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&sessions).Error
	return sessions, err
}

func (q *Queries) PageSessionsByOwner(ctx context.Context, ownerID string, pageable models.Pageable) ([]Session, int64, error) {
	return models.PageQuery[Session](q.db.WithContext(ctx), &pageable, "owner_id = ?", ownerID)
}

func (q *Queries) ListStaleActiveSessions(ctx context.Context, cutoff time.Time) ([]Session, error) {
	var sessions []Session
	err := q.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", "active", cutoff).
		Find(&sessions).Error
	return sessions, err
}

// ListUnchargedCompletedSessions returns completed sessions with no
// transaction referencing them. A completed session whose debit failed leaves
// exactly this shape behind.
func (q *Queries) ListUnchargedCompletedSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	sub := q.db.Model(&Transaction{}).Select("session_id").Where("session_id <> ''")
	err := q.db.WithContext(ctx).
		Where("status = ? AND id NOT IN (?)", "completed", sub).
		Find(&sessions).Error
	return sessions, err
}

// UpdateSessionCounters overwrites the chunk and length counters. Counter
// loss is tolerable, so callers log and move on when this fails.
func (q *Queries) UpdateSessionCounters(ctx context.Context, id string, chunks, length int64) error {
	return q.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"chunks_received":    chunks,
			"accumulated_length": length,
		}).Error
}

// MarkSessionTerminal moves an active session to a terminal status. The
// status guard in the WHERE clause makes the transition one-way: a session
// already completed or aborted is never rewritten.
func (q *Queries) MarkSessionTerminal(ctx context.Context, id, status string, completedAt time.Time) (Session, error) {
	res := q.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status = ?", id, "active").
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return Session{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Session{}, errors.Wrapf(gorm.ErrRecordNotFound, "session %s is not active", id)
	}
	return q.GetSessionByID(ctx, id)
}
