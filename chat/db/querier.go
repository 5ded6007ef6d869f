package db

import (
	"context"
	"time"

	"github.com/xiehqing/streamcore/models"
)

type Querier interface {
	CreateSession(ctx context.Context, arg CreateSessionArgs) (Session, error)
	GetSessionByID(ctx context.Context, id string) (Session, error)
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]Session, error)
	PageSessionsByOwner(ctx context.Context, ownerID string, pageable models.Pageable) ([]Session, int64, error)
	ListStaleActiveSessions(ctx context.Context, cutoff time.Time) ([]Session, error)
	ListUnchargedCompletedSessions(ctx context.Context) ([]Session, error)
	UpdateSessionCounters(ctx context.Context, id string, chunks, length int64) error
	MarkSessionTerminal(ctx context.Context, id, status string, completedAt time.Time) (Session, error)

	CreateMessage(ctx context.Context, arg CreateMessageArgs) (Message, error)
	ListMessagesBySession(ctx context.Context, sessionID string) ([]Message, error)

	ListTransactionsBySession(ctx context.Context, sessionID string) ([]Transaction, error)
	ListTransactionsByOwner(ctx context.Context, ownerID string, limit int) ([]Transaction, error)
	CountOverdraftTransactions(ctx context.Context) (int64, error)

	ListNegativeAccounts(ctx context.Context) ([]CreditAccount, error)

	CreateContinuationLink(ctx context.Context, arg CreateContinuationLinkArgs) (ContinuationLink, error)
	GetContinuationLinkByParent(ctx context.Context, parentSessionID string) (ContinuationLink, error)
	GetContinuationLinkByChild(ctx context.Context, childSessionID string) (ContinuationLink, error)
}

var _ Querier = (*Queries)(nil)
