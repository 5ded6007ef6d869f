package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/pubsub"
	"github.com/xiehqing/streamcore/models"
	"github.com/xiehqing/streamcore/pkg/logs"
	"gorm.io/gorm"
)

var ErrNotActive = errors.New("session is not active")

type Service interface {
	pubsub.Subscriber[Session]
	Create(ctx context.Context, ownerID, provider, model string, depth int64) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Session, error)
	PageByOwner(ctx context.Context, ownerID string, pageable models.Pageable) ([]Session, int64, error)
	// UpdateCounters overwrites chunk/length counters; callers batch these
	// writes and tolerate failure (losing a counter must not kill a stream).
	UpdateCounters(ctx context.Context, id string, chunks, length int64) error
	Complete(ctx context.Context, id string) (Session, error)
	Abort(ctx context.Context, id string) (Session, error)
}

type service struct {
	*pubsub.Broker[Session]
	q db.Querier
}

func NewService(q db.Querier) Service {
	return &service{
		Broker: pubsub.NewBroker[Session](),
		q:      q,
	}
}

func (s *service) Create(ctx context.Context, ownerID, provider, model string, depth int64) (Session, error) {
	dbSession, err := s.q.CreateSession(ctx, db.CreateSessionArgs{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Provider:  provider,
		Model:     model,
		Status:    string(StatusActive),
		Depth:     depth,
		StartedAt: time.Now(),
	})
	if err != nil {
		return Session{}, errors.WithMessage(err, "create session")
	}
	session := s.fromDBItem(dbSession)
	s.Publish(pubsub.CreatedEvent, session)
	return session, nil
}

func (s *service) Get(ctx context.Context, id string) (Session, error) {
	dbSession, err := s.q.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return s.fromDBItem(dbSession), nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID string) ([]Session, error) {
	dbSessions, err := s.q.ListSessionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, len(dbSessions))
	for i, dbSession := range dbSessions {
		sessions[i] = s.fromDBItem(dbSession)
	}
	return sessions, nil
}

func (s *service) PageByOwner(ctx context.Context, ownerID string, pageable models.Pageable) ([]Session, int64, error) {
	dbSessions, total, err := s.q.PageSessionsByOwner(ctx, ownerID, pageable)
	if err != nil {
		return nil, 0, err
	}
	sessions := make([]Session, len(dbSessions))
	for i, dbSession := range dbSessions {
		sessions[i] = s.fromDBItem(dbSession)
	}
	return sessions, total, nil
}

func (s *service) UpdateCounters(ctx context.Context, id string, chunks, length int64) error {
	return s.q.UpdateSessionCounters(ctx, id, chunks, length)
}

// Complete transitions active -> completed. completed_at is written exactly
// once, in the same update that flips the status.
func (s *service) Complete(ctx context.Context, id string) (Session, error) {
	return s.markTerminal(ctx, id, StatusCompleted)
}

// Abort transitions active -> aborted. Aborted sessions are never charged.
func (s *service) Abort(ctx context.Context, id string) (Session, error) {
	return s.markTerminal(ctx, id, StatusAborted)
}

func (s *service) markTerminal(ctx context.Context, id string, status Status) (Session, error) {
	dbSession, err := s.q.MarkSessionTerminal(ctx, id, string(status), time.Now())
	if err != nil {
		logs.Errorf("failed to mark session %s as %s: %v", id, status, err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, errors.WithMessagef(ErrNotActive, "session %s", id)
		}
		return Session{}, err
	}
	session := s.fromDBItem(dbSession)
	s.Publish(pubsub.UpdatedEvent, session)
	return session, nil
}

func (s *service) fromDBItem(item db.Session) Session {
	session := Session{
		ID:                item.ID,
		OwnerID:           item.OwnerID,
		Provider:          item.Provider,
		Model:             item.Model,
		Status:            Status(item.Status),
		ChunksReceived:    item.ChunksReceived,
		AccumulatedLength: item.AccumulatedLength,
		Depth:             item.Depth,
	}
	if item.StartedAt != nil {
		session.StartedAt = item.StartedAt.Unix()
	}
	if item.CompletedAt != nil {
		session.CompletedAt = item.CompletedAt.Unix()
	}
	if item.CreatedAt != nil {
		session.CreatedAt = item.CreatedAt.Unix()
	}
	if item.UpdatedAt != nil {
		session.UpdatedAt = item.UpdatedAt.Unix()
	}
	return session
}
