package stream

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/provider"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/pkg/logs"
)

var (
	ErrPaymentRequired = errors.New("insufficient credits to start a stream")
	ErrOwnerMismatch   = errors.New("session belongs to a different owner")
)

// Counter writes are batched; one flush per this many chunks.
const flushEvery = 8

// Config 流式会话配置
type Config struct {
	// SessionTimeoutSeconds is the wall-clock ceiling for one streaming
	// exchange. Hitting it winds the session down like a disconnect.
	SessionTimeoutSeconds int `yaml:"session-timeout-seconds" json:"sessionTimeoutSeconds" mapstructure:"session-timeout-seconds"`
}

func (c *Config) Prepare() {
	if c.SessionTimeoutSeconds <= 0 {
		c.SessionTimeoutSeconds = 600
	}
}

// SendFunc delivers one frame to the client. A non-nil error means the
// client channel is gone and the stream must wind down.
type SendFunc func(Frame) error

type StartRequest struct {
	OwnerID  string
	Provider provider.Provider
	Model    string
	Prompt   string
	// SessionID resumes an existing active session (continuation children
	// arrive this way). Empty means a fresh depth-zero session.
	SessionID string
}

// Mux drives one upstream stream into one client channel. It is the only
// component that touches the client channel for a session: adapters produce,
// the mux relays, bills, and persists.
type Mux struct {
	cfg      Config
	sessions session.Service
	ledger   *billing.Ledger
	credit   billing.CreditConfig
	factory  provider.Factory
	q        db.Querier
}

func NewMux(cfg Config, sessions session.Service, ledger *billing.Ledger, credit billing.CreditConfig, factory provider.Factory, q db.Querier) *Mux {
	cfg.Prepare()
	credit.Prepare()
	return &Mux{cfg: cfg, sessions: sessions, ledger: ledger, credit: credit, factory: factory, q: q}
}

// Run executes one full streaming exchange. It returns ErrPaymentRequired
// before any session exists when the owner cannot cover the cheapest tier;
// every later failure resolves the session to a terminal status first.
func (m *Mux) Run(ctx context.Context, req StartRequest, send SendFunc) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.SessionTimeoutSeconds)*time.Second)
	defer cancel()

	ok, err := m.ledger.Check(ctx, req.OwnerID, m.credit.MinCost())
	if err != nil {
		return errors.WithMessage(err, "pre-flight credit check")
	}
	if !ok {
		return ErrPaymentRequired
	}

	sess, turns, err := m.prepareSession(ctx, req)
	if err != nil {
		return err
	}

	if _, err := m.q.CreateMessage(ctx, db.CreateMessageArgs{
		SessionID: sess.ID,
		Role:      "user",
		Content:   req.Prompt,
	}); err != nil {
		logs.CtxErrorf(ctx, "persist user message for session %s: %v", sess.ID, err)
	}
	turns = append(turns, provider.Turn{Role: "user", Content: req.Prompt})

	upstream, err := m.factory.Open(ctx, req.Provider, provider.Request{
		Model: req.Model,
		Turns: turns,
	})
	if err != nil {
		m.abort(ctx, sess.ID)
		return errors.WithMessage(err, "open upstream stream")
	}
	defer upstream.Close()

	return m.relay(ctx, sess, upstream, send)
}

func (m *Mux) prepareSession(ctx context.Context, req StartRequest) (session.Session, []provider.Turn, error) {
	if req.SessionID == "" {
		sess, err := m.sessions.Create(ctx, req.OwnerID, string(req.Provider), req.Model, 0)
		if err != nil {
			return session.Session{}, nil, err
		}
		return sess, nil, nil
	}

	sess, err := m.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return session.Session{}, nil, errors.WithMessagef(err, "load session %s", req.SessionID)
	}
	if sess.OwnerID != req.OwnerID {
		return session.Session{}, nil, ErrOwnerMismatch
	}
	if sess.Status.Terminal() {
		return session.Session{}, nil, errors.WithMessagef(session.ErrNotActive, "session %s", sess.ID)
	}

	messages, err := m.q.ListMessagesBySession(ctx, sess.ID)
	if err != nil {
		return session.Session{}, nil, errors.WithMessage(err, "load transcript")
	}
	turns := make([]provider.Turn, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		// Seeded summaries replay as user context, not assistant output.
		if msg.IsSummary {
			role = "user"
		}
		turns = append(turns, provider.Turn{Role: role, Content: msg.Content})
	}
	return sess, turns, nil
}

func (m *Mux) relay(ctx context.Context, sess session.Session, upstream provider.Stream, send SendFunc) error {
	var (
		chunks    = sess.ChunksReceived
		length    = sess.AccumulatedLength
		unflushed int64
		text      strings.Builder
	)
	flush := func() {
		if unflushed == 0 {
			return
		}
		if err := m.sessions.UpdateCounters(ctx, sess.ID, chunks, length); err != nil {
			logs.CtxWarnf(ctx, "flush counters for session %s: %v", sess.ID, err)
		}
		unflushed = 0
	}

	for {
		if ctx.Err() != nil {
			flush()
			m.abort(ctx, sess.ID)
			return nil
		}
		ev, err := upstream.Recv()
		if err != nil {
			flush()
			m.abort(ctx, sess.ID)
			return errors.WithMessage(err, "read upstream")
		}
		switch ev.Kind {
		case provider.EventDelta:
			if err := send(Frame{SessionID: sess.ID, Content: ev.Text}); err != nil {
				// Client channel is gone. No charge for a partial delivery.
				logs.CtxInfof(ctx, "client disconnected from session %s after %d chunks", sess.ID, chunks)
				flush()
				m.abort(ctx, sess.ID)
				return nil
			}
			chunks++
			length += int64(len(ev.Text))
			unflushed++
			text.WriteString(ev.Text)
			if unflushed >= flushEvery {
				flush()
			}
		case provider.EventError:
			flush()
			m.abort(ctx, sess.ID)
			frame := Frame{SessionID: sess.ID, Done: true, Error: ev.Err.Error()}
			if sendErr := send(frame); sendErr != nil {
				logs.CtxWarnf(ctx, "deliver error frame for session %s: %v", sess.ID, sendErr)
			}
			return errors.WithMessagef(ev.Err, "session %s upstream failure", sess.ID)
		case provider.EventDone:
			flush()
			return m.settle(ctx, sess, text.String(), chunks, length, send)
		}
	}
}

// settle charges and completes a fully delivered session. A ledger failure
// never takes completion down with it: the session still completes, the
// charge is logged as lost, and the final frame omits credit fields.
func (m *Mux) settle(ctx context.Context, sess session.Session, text string, chunks, length int64, send SendFunc) error {
	if err := m.sessions.UpdateCounters(ctx, sess.ID, chunks, length); err != nil {
		logs.CtxWarnf(ctx, "final counter write for session %s: %v", sess.ID, err)
	}
	if _, err := m.q.CreateMessage(ctx, db.CreateMessageArgs{
		SessionID: sess.ID,
		Role:      "assistant",
		Content:   text,
	}); err != nil {
		logs.CtxErrorf(ctx, "persist assistant message for session %s: %v", sess.ID, err)
	}

	frame := Frame{SessionID: sess.ID, Done: true}
	reason := billing.AssessTier(m.credit, text, int(length))
	cost := m.credit.CostOf(reason)
	balance, txn, err := m.ledger.Debit(ctx, sess.OwnerID, cost, reason, sess.ID)
	if err != nil {
		logs.CtxErrorf(ctx, "debit %d (%s) for session %s failed, charge lost: %v", cost, reason, sess.ID, err)
	} else {
		frame.CreditsUsed = &cost
		frame.CreditsRemaining = &balance
		if txn.Overdraft {
			logs.CtxWarnf(ctx, "session %s completed in overdraft, balance %d", sess.ID, balance)
		}
	}

	if _, err := m.sessions.Complete(ctx, sess.ID); err != nil {
		return errors.WithMessagef(err, "complete session %s", sess.ID)
	}
	if err := send(frame); err != nil {
		logs.CtxWarnf(ctx, "deliver final frame for session %s: %v", sess.ID, err)
	}
	return nil
}

// abort runs on a detached context: the transition to aborted must land
// even when the trigger was the session context expiring.
func (m *Mux) abort(ctx context.Context, id string) {
	if _, err := m.sessions.Abort(context.WithoutCancel(ctx), id); err != nil {
		logs.CtxErrorf(ctx, "abort session %s: %v", id, err)
	}
}
