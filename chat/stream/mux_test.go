package stream

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/xiehqing/streamcore/chat/billing"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/provider"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/pkg/ormx"
	"github.com/xiehqing/streamcore/pkg/redisx"
	"gorm.io/gorm"
)

// scriptedStream replays a fixed event sequence, then io.EOF.
type scriptedStream struct {
	events []provider.Event
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (provider.Event, error) {
	if s.pos >= len(s.events) {
		return provider.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type scriptedFactory struct {
	stream  *scriptedStream
	openErr error
	lastReq provider.Request
	opened  int
}

func (f *scriptedFactory) Open(_ context.Context, _ provider.Provider, req provider.Request) (provider.Stream, error) {
	f.opened++
	f.lastReq = req
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func deltas(texts ...string) []provider.Event {
	events := make([]provider.Event, 0, len(texts)+1)
	for _, text := range texts {
		events = append(events, provider.Event{Kind: provider.EventDelta, Text: text})
	}
	return append(events, provider.Event{Kind: provider.EventDone})
}

type muxFixture struct {
	mux      *Mux
	sessions session.Service
	ledger   *billing.Ledger
	factory  *scriptedFactory
	q        *db.Queries
	gdb      *gorm.DB
}

func newMuxFixture(t *testing.T, factory *scriptedFactory) *muxFixture {
	t.Helper()
	gdb, err := ormx.NewDBClient(ormx.DBConfig{
		DbType:             "sqlite",
		DSN:                fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConnections: 1,
		MaxIdleConnections: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Init(gdb))
	rdb, err := redisx.NewRedis(redisx.RedisConfig{RedisType: "miniredis"})
	require.NoError(t, err)

	queries := db.New(gdb)
	sessions := session.NewService(queries)
	ledger := billing.NewLedger(gdb, rdb)
	var cfg billing.CreditConfig
	cfg.Prepare()
	return &muxFixture{
		mux:      NewMux(Config{}, sessions, ledger, cfg, factory, queries),
		sessions: sessions,
		ledger:   ledger,
		factory:  factory,
		q:        queries,
		gdb:      gdb,
	}
}

func (f *muxFixture) fund(t *testing.T, owner string, amount int64) {
	t.Helper()
	_, _, err := f.ledger.Credit(context.Background(), owner, amount, billing.ReasonPurchase)
	require.NoError(t, err)
}

func collectFrames(frames *[]Frame) SendFunc {
	return func(f Frame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("Hel", "lo", "!")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	var frames []Frame
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "say hello",
	}, collectFrames(&frames))
	require.NoError(t, err)

	require.Len(t, frames, 4)
	require.Equal(t, "Hel", frames[0].Content)
	require.Equal(t, "lo", frames[1].Content)
	require.Equal(t, "!", frames[2].Content)

	final := frames[3]
	require.True(t, final.Done)
	require.NotNil(t, final.CreditsUsed)
	require.Equal(t, int64(1), *final.CreditsUsed)
	require.NotNil(t, final.CreditsRemaining)
	require.Equal(t, int64(4), *final.CreditsRemaining)

	sess, err := fx.sessions.Get(ctx, final.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, sess.Status)
	require.Equal(t, int64(3), sess.ChunksReceived)
	require.Equal(t, int64(6), sess.AccumulatedLength)

	messages, err := fx.q.ListMessagesBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "say hello", messages[0].Content)
	require.Equal(t, "assistant", messages[1].Role)
	require.Equal(t, "Hello!", messages[1].Content)

	require.True(t, factory.stream.closed)
}

func TestRunBalanceOfOneCoversOneMessage(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("ok")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 1)

	var frames []Frame
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "hi",
	}, collectFrames(&frames))
	require.NoError(t, err)

	final := frames[len(frames)-1]
	require.Equal(t, int64(0), *final.CreditsRemaining)

	// The next stream fails pre-flight before any session exists.
	err = fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "hi again",
	}, collectFrames(&frames))
	require.ErrorIs(t, err, ErrPaymentRequired)

	sessions, err := fx.sessions.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1, "rejected request must not create a session")
}

func TestRunZeroBalancePreFlight(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("never sent")}}
	fx := newMuxFixture(t, factory)

	err := fx.mux.Run(context.Background(), StartRequest{
		OwnerID:  "owner-broke",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "hi",
	}, func(Frame) error { return nil })
	require.ErrorIs(t, err, ErrPaymentRequired)
	require.Zero(t, factory.opened, "upstream must not be dialed")
}

func TestRunClientDisconnect(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("a", "b", "c", "d", "e")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	var sent int
	var sessionID string
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "hi",
	}, func(f Frame) error {
		sessionID = f.SessionID
		sent++
		if sent > 3 {
			return errors.New("client went away")
		}
		return nil
	})
	require.NoError(t, err, "disconnect is a normal wind-down, not a failure")

	sess, err := fx.sessions.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusAborted, sess.Status)

	// No charge for a partial delivery.
	balance, err := fx.ledger.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
	txns, err := fx.q.ListTransactionsBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestRunUpstreamError(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: []provider.Event{
		{Kind: provider.EventDelta, Text: "par"},
		{Kind: provider.EventDelta, Text: "tial"},
		{Kind: provider.EventError, Err: errors.New("overloaded")},
	}}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	var frames []Frame
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderAnthropic,
		Model:    "claude-test",
		Prompt:   "hi",
	}, collectFrames(&frames))
	require.Error(t, err)
	require.Contains(t, err.Error(), "overloaded")

	final := frames[len(frames)-1]
	require.True(t, final.Done)
	require.Contains(t, final.Error, "overloaded")
	require.Nil(t, final.CreditsUsed)

	sess, err := fx.sessions.Get(ctx, final.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusAborted, sess.Status)

	balance, err := fx.ledger.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
	txns, err := fx.q.ListTransactionsBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, txns)
}

func TestRunOpenFailureAbortsSession(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{openErr: errors.New("connection refused")}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "hi",
	}, func(Frame) error { return nil })
	require.Error(t, err)

	sessions, err := fx.sessions.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, session.StatusAborted, sessions[0].Status)
}

func TestRunCodeGenerationTier(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("```go\n", "func main() {}\n", "```")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	var frames []Frame
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "write main",
	}, collectFrames(&frames))
	require.NoError(t, err)

	final := frames[len(frames)-1]
	require.Equal(t, int64(3), *final.CreditsUsed)
	require.Equal(t, int64(2), *final.CreditsRemaining)

	txns, err := fx.q.ListTransactionsBySession(ctx, final.SessionID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, string(billing.ReasonCodeGeneration), txns[0].Reason)
}

func TestRunLongResponseTier(t *testing.T) {
	t.Parallel()
	chunk := strings.Repeat("a", 700)
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas(chunk, chunk)}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	var frames []Frame
	err := fx.mux.Run(ctx, StartRequest{
		OwnerID:  "owner-1",
		Provider: provider.ProviderOpenAI,
		Model:    "gpt-test",
		Prompt:   "write a lot",
	}, collectFrames(&frames))
	require.NoError(t, err)

	final := frames[len(frames)-1]
	require.Equal(t, int64(2), *final.CreditsUsed)

	sess, err := fx.sessions.Get(ctx, final.SessionID)
	require.NoError(t, err)
	require.Equal(t, int64(1400), sess.AccumulatedLength)
}

func TestRunResumeSession(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("resumed")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	sess, err := fx.sessions.Create(ctx, "owner-1", "openai", "gpt-test", 1)
	require.NoError(t, err)
	_, err = fx.q.CreateMessage(ctx, db.CreateMessageArgs{
		SessionID: sess.ID,
		Role:      "assistant",
		Content:   "earlier context",
		IsSummary: true,
	})
	require.NoError(t, err)

	var frames []Frame
	err = fx.mux.Run(ctx, StartRequest{
		OwnerID:   "owner-1",
		Provider:  provider.ProviderOpenAI,
		Model:     "gpt-test",
		Prompt:    "go on",
		SessionID: sess.ID,
	}, collectFrames(&frames))
	require.NoError(t, err)

	// The seeded summary replays as user context ahead of the new prompt.
	require.Len(t, factory.lastReq.Turns, 2)
	require.Equal(t, "user", factory.lastReq.Turns[0].Role)
	require.Equal(t, "earlier context", factory.lastReq.Turns[0].Content)
	require.Equal(t, "go on", factory.lastReq.Turns[1].Content)

	got, err := fx.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusCompleted, got.Status)
}

func TestRunResumeRejectsWrongOwner(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("nope")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-2", 5)

	sess, err := fx.sessions.Create(ctx, "owner-1", "openai", "gpt-test", 0)
	require.NoError(t, err)

	err = fx.mux.Run(ctx, StartRequest{
		OwnerID:   "owner-2",
		Provider:  provider.ProviderOpenAI,
		Model:     "gpt-test",
		Prompt:    "hi",
		SessionID: sess.ID,
	}, func(Frame) error { return nil })
	require.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestRunResumeRejectsTerminalSession(t *testing.T) {
	t.Parallel()
	factory := &scriptedFactory{stream: &scriptedStream{events: deltas("nope")}}
	fx := newMuxFixture(t, factory)
	ctx := context.Background()
	fx.fund(t, "owner-1", 5)

	sess, err := fx.sessions.Create(ctx, "owner-1", "openai", "gpt-test", 0)
	require.NoError(t, err)
	_, err = fx.sessions.Complete(ctx, sess.ID)
	require.NoError(t, err)

	err = fx.mux.Run(ctx, StartRequest{
		OwnerID:   "owner-1",
		Provider:  provider.ProviderOpenAI,
		Model:     "gpt-test",
		Prompt:    "hi",
		SessionID: sess.ID,
	}, func(Frame) error { return nil })
	require.ErrorIs(t, err, session.ErrNotActive)
}
