package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/pkg/ormx"
	"github.com/xiehqing/streamcore/pkg/redisx"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T) (*Ledger, *gorm.DB) {
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

	return NewLedger(gdb, rdb), gdb
}

func TestLedgerCreditThenDebit(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	balance, txn, err := ledger.Credit(ctx, "owner-1", 10, ReasonPurchase)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
	require.Equal(t, int64(10), txn.ResultingBalance)
	require.False(t, txn.Overdraft)

	balance, txn, err = ledger.Debit(ctx, "owner-1", 3, ReasonCodeGeneration, "session-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), balance)
	require.Equal(t, int64(-3), txn.Amount)
	require.Equal(t, "session-1", txn.SessionID)
	require.False(t, txn.Overdraft)

	got, err := ledger.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), got)
}

func TestLedgerDebitCreatesMissingAccount(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// No account exists yet; the debit still applies, flagged as overdraft.
	balance, txn, err := ledger.Debit(ctx, "owner-new", 2, ReasonLongResponse, "session-1")
	require.NoError(t, err)
	require.Equal(t, int64(-2), balance)
	require.True(t, txn.Overdraft)
}

func TestLedgerOverdraftFlagging(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Credit(ctx, "owner-1", 1, ReasonPromo)
	require.NoError(t, err)

	// Balance 1, cost 3: the charge applies anyway and is flagged.
	balance, txn, err := ledger.Debit(ctx, "owner-1", 3, ReasonCodeGeneration, "session-1")
	require.NoError(t, err)
	require.Equal(t, int64(-2), balance)
	require.True(t, txn.Overdraft)

	// An exact-balance debit is not an overdraft.
	_, _, err = ledger.Credit(ctx, "owner-2", 3, ReasonPurchase)
	require.NoError(t, err)
	balance, txn, err = ledger.Debit(ctx, "owner-2", 3, ReasonCodeGeneration, "session-2")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance)
	require.False(t, txn.Overdraft)
}

func TestLedgerCheck(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	ok, err := ledger.Check(ctx, "owner-1", 1)
	require.NoError(t, err)
	require.False(t, ok, "missing account reads as zero balance")

	_, _, err = ledger.Credit(ctx, "owner-1", 1, ReasonPurchase)
	require.NoError(t, err)

	ok, err = ledger.Check(ctx, "owner-1", 1)
	require.NoError(t, err)
	require.True(t, ok, "balance exactly equal to the minimum cost passes")

	ok, err = ledger.Check(ctx, "owner-1", 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	t.Parallel()
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Debit(ctx, "owner-1", 0, ReasonMessage, "")
	require.Error(t, err)
	_, _, err = ledger.Debit(ctx, "owner-1", -5, ReasonMessage, "")
	require.Error(t, err)
	_, _, err = ledger.Credit(ctx, "owner-1", 0, ReasonPurchase)
	require.Error(t, err)
}

func TestLedgerConcurrentDebits(t *testing.T) {
	t.Parallel()
	ledger, gdb := newTestLedger(t)
	ctx := context.Background()

	const workers = 10
	_, _, err := ledger.Credit(ctx, "owner-1", workers, ReasonPurchase)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = ledger.Debit(ctx, "owner-1", 1, ReasonMessage, fmt.Sprintf("session-%d", i))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "debit %d", i)
	}

	balance, err := ledger.Balance(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance, "every debit applied exactly once")

	var count int64
	require.NoError(t, gdb.Model(&db.Transaction{}).Where("owner_id = ? AND amount < 0", "owner-1").Count(&count).Error)
	require.Equal(t, int64(workers), count)
}
