package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/chat/pubsub"
	"github.com/xiehqing/streamcore/chat/session"
	"github.com/xiehqing/streamcore/pkg/logs"
	"github.com/xiehqing/streamcore/pkg/safego"
)

// Config 对账配置
type Config struct {
	// Spec is a standard cron expression; every 10 minutes by default.
	Spec string `yaml:"spec" json:"spec" mapstructure:"spec"`
	// StaleAfterMinutes is how long an active session may run before the
	// sweep treats it as orphaned by a crashed instance.
	StaleAfterMinutes int `yaml:"stale-after-minutes" json:"staleAfterMinutes" mapstructure:"stale-after-minutes"`
}

func (c *Config) Prepare() {
	if c.Spec == "" {
		c.Spec = "*/10 * * * *"
	}
	if c.StaleAfterMinutes <= 0 {
		c.StaleAfterMinutes = 60
	}
}

// Sweeper periodically aborts orphaned sessions and reports billing drift.
// Stale active sessions never charged anyone, so aborting them is safe.
type Sweeper struct {
	cfg       Config
	sessions  session.Service
	q         db.Querier
	cron      *cron.Cron
	stopWatch context.CancelFunc
}

func NewSweeper(cfg Config, sessions session.Service, q db.Querier) *Sweeper {
	cfg.Prepare()
	return &Sweeper{
		cfg:      cfg,
		sessions: sessions,
		q:        q,
		cron:     cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() {
		ctx := context.Background()
		// A panicking sweep must not take the scheduler down.
		defer safego.Recovery(ctx)
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	watchCtx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	go s.watch(watchCtx)
	logs.Infof("reconcile sweeper started, spec=%q stale-after=%dm", s.cfg.Spec, s.cfg.StaleAfterMinutes)
	return nil
}

func (s *Sweeper) Stop() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	<-s.cron.Stop().Done()
}

// watch logs terminal transitions as they are published, so an operator
// tailing the log sees them without waiting for the next sweep.
func (s *Sweeper) watch(ctx context.Context) {
	defer safego.Recovery(ctx)
	for event := range s.sessions.Subscribe(ctx) {
		if event.Type != pubsub.UpdatedEvent {
			continue
		}
		sess := event.Payload
		logs.CtxInfof(ctx, "session %s is now %s (chunks=%d, length=%d)",
			sess.ID, sess.Status, sess.ChunksReceived, sess.AccumulatedLength)
	}
}

// Sweep runs one pass. Exported so an operator endpoint or test can trigger
// it outside the schedule.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.StaleAfterMinutes) * time.Minute)
	stale, err := s.q.ListStaleActiveSessions(ctx, cutoff)
	if err != nil {
		logs.CtxErrorf(ctx, "list stale sessions: %v", err)
	} else {
		for _, item := range stale {
			if _, err := s.sessions.Abort(ctx, item.ID); err != nil {
				logs.CtxErrorf(ctx, "abort stale session %s: %v", item.ID, err)
				continue
			}
			logs.CtxInfof(ctx, "aborted stale session %s (started %s)", item.ID, item.StartedAt)
		}
	}

	// A completed session with no transaction means its debit was lost.
	// Surfacing it every sweep keeps the lost charge visible until an
	// operator settles it by hand.
	uncharged, err := s.q.ListUnchargedCompletedSessions(ctx)
	if err != nil {
		logs.CtxErrorf(ctx, "list uncharged completed sessions: %v", err)
	} else {
		for _, item := range uncharged {
			logs.CtxWarnf(ctx, "completed session %s (owner %s) was never charged", item.ID, item.OwnerID)
		}
	}

	overdrafts, err := s.q.CountOverdraftTransactions(ctx)
	if err != nil {
		logs.CtxErrorf(ctx, "count overdraft transactions: %v", err)
	} else if overdrafts > 0 {
		logs.CtxWarnf(ctx, "ledger carries %d overdraft transactions", overdrafts)
	}

	negatives, err := s.q.ListNegativeAccounts(ctx)
	if err != nil {
		logs.CtxErrorf(ctx, "list negative accounts: %v", err)
		return
	}
	for _, account := range negatives {
		logs.CtxWarnf(ctx, "account %s has negative balance %d", account.OwnerID, account.Balance)
	}
}
