package continuation

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/provider"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/pkg/logs"
	"gorm.io/gorm"
)

var (
	ErrParentNotCompleted = errors.New("parent session is not completed")
	ErrAlreadyContinued   = errors.New("parent session already has a continuation")
)

const (
	// MaxDepth caps a continuation chain. A chain this deep has summarized
	// its summaries several times over; force a fresh start instead.
	MaxDepth = 10

	summaryPrompt = "Summarize the conversation so far in a few short paragraphs. " +
		"Keep decisions, open questions and any code that was produced. " +
		"The summary seeds a follow-up conversation, so write it as context, not as a reply."

	summaryMaxTokens = 1024
)

var ErrDepthExceeded = errors.New("continuation depth limit reached")

// Result is handed back to the client verbatim.
type Result struct {
	NewChatID       string              `json:"new_chat_id"`
	ContextSummary  string              `json:"context_summary"`
	PreviousMetrics SessionMetrics      `json:"previous_metrics"`
	Link            db.ContinuationLink `json:"-"`
}

type SessionMetrics struct {
	ChunksReceived    int64 `json:"chunks_received"`
	AccumulatedLength int64 `json:"accumulated_length"`
	Depth             int64 `json:"depth"`
}

type Service interface {
	// Continue spawns a summary-seeded child for a completed parent. The
	// reason is free-form audit text ("context_limit", "user_request", ...).
	Continue(ctx context.Context, parentID, reason string, preserveContext bool) (Result, error)
}

type service struct {
	sessions session.Service
	ledger   *billing.Ledger
	cfg      billing.CreditConfig
	factory  provider.Factory
	q        db.Querier
}

func NewService(sessions session.Service, ledger *billing.Ledger, cfg billing.CreditConfig, factory provider.Factory, q db.Querier) Service {
	cfg.Prepare()
	return &service{sessions: sessions, ledger: ledger, cfg: cfg, factory: factory, q: q}
}

func (s *service) Continue(ctx context.Context, parentID, reason string, preserveContext bool) (Result, error) {
	parent, err := s.sessions.Get(ctx, parentID)
	if err != nil {
		return Result{}, errors.WithMessagef(err, "load parent session %s", parentID)
	}
	if parent.Status != session.StatusCompleted {
		return Result{}, errors.WithMessagef(ErrParentNotCompleted, "session %s is %s", parentID, parent.Status)
	}
	if parent.Depth+1 > MaxDepth {
		return Result{}, errors.WithMessagef(ErrDepthExceeded, "session %s is at depth %d", parentID, parent.Depth)
	}
	// One child per parent keeps the continuation graph a forest.
	if _, err := s.q.GetContinuationLinkByParent(ctx, parentID); err == nil {
		return Result{}, errors.WithMessagef(ErrAlreadyContinued, "session %s", parentID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, errors.WithMessage(err, "check existing continuation")
	}

	summary := ""
	if preserveContext {
		summary = s.summarize(ctx, parent)
	}

	child, err := s.sessions.Create(ctx, parent.OwnerID, parent.Provider, parent.Model, parent.Depth+1)
	if err != nil {
		return Result{}, errors.WithMessage(err, "create child session")
	}

	if summary != "" {
		if _, err := s.q.CreateMessage(ctx, db.CreateMessageArgs{
			SessionID: child.ID,
			Role:      "user",
			Content:   summary,
			IsSummary: true,
		}); err != nil {
			logs.CtxErrorf(ctx, "seed summary into session %s: %v", child.ID, err)
		}
	}

	link, err := s.q.CreateContinuationLink(ctx, db.CreateContinuationLinkArgs{
		ParentSessionID: parent.ID,
		ChildSessionID:  child.ID,
		Reason:          reason,
		Depth:           child.Depth,
		ContextSummary:  summary,
	})
	if err != nil {
		// The unique index on parent_session_id closes the race between two
		// concurrent continue calls; the loser aborts its orphan child.
		if _, abortErr := s.sessions.Abort(ctx, child.ID); abortErr != nil {
			logs.CtxErrorf(ctx, "abort orphan child %s: %v", child.ID, abortErr)
		}
		return Result{}, errors.WithMessagef(ErrAlreadyContinued, "session %s: %v", parentID, err)
	}

	if _, _, err := s.ledger.Debit(ctx, parent.OwnerID, s.cfg.CostOf(billing.ReasonContinuation), billing.ReasonContinuation, child.ID); err != nil {
		logs.CtxErrorf(ctx, "continuation debit for %s failed, charge lost: %v", child.ID, err)
	}

	return Result{
		NewChatID:      child.ID,
		ContextSummary: summary,
		PreviousMetrics: SessionMetrics{
			ChunksReceived:    parent.ChunksReceived,
			AccumulatedLength: parent.AccumulatedLength,
			Depth:             parent.Depth,
		},
		Link: link,
	}, nil
}

// summarize asks the parent's own provider for a transcript summary. Any
// failure degrades to a placeholder so a flaky upstream cannot block the
// continuation itself.
func (s *service) summarize(ctx context.Context, parent session.Session) string {
	messages, err := s.q.ListMessagesBySession(ctx, parent.ID)
	if err != nil {
		logs.CtxWarnf(ctx, "load transcript of %s for summary: %v", parent.ID, err)
		return s.placeholder(parent)
	}
	if len(messages) == 0 {
		return s.placeholder(parent)
	}

	turns := make([]provider.Turn, 0, len(messages)+1)
	for _, msg := range messages {
		turns = append(turns, provider.Turn{Role: msg.Role, Content: msg.Content})
	}
	turns = append(turns, provider.Turn{Role: "user", Content: summaryPrompt})

	p, err := provider.ParseProvider(parent.Provider)
	if err != nil {
		logs.CtxWarnf(ctx, "summarize %s: %v", parent.ID, err)
		return s.placeholder(parent)
	}
	summary, err := provider.Complete(ctx, s.factory, p, provider.Request{
		Model:     parent.Model,
		Turns:     turns,
		MaxTokens: summaryMaxTokens,
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		logs.CtxWarnf(ctx, "summarize %s via %s: %v", parent.ID, parent.Provider, err)
		return s.placeholder(parent)
	}
	return summary
}

func (s *service) placeholder(parent session.Session) string {
	return fmt.Sprintf("Continuation of an earlier conversation (%d messages, %d characters). The transcript summary was unavailable.",
		parent.ChunksReceived, parent.AccumulatedLength)
}
