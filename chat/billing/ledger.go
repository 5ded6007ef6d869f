package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/chat/db"
	"github.com/xiehqing/streamcore/pkg/logs"
	"github.com/xiehqing/streamcore/pkg/redisx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

const ownerLockPrefix = "credit_lock:"

// Ledger owns every CreditAccount mutation. Debits against the same owner
// serialize: a per-owner redis lock across instances plus a row lock inside
// the database transaction. The Transaction row is written in the same
// atomic unit as the balance update.
type Ledger struct {
	db  *gorm.DB
	rdb redisx.Redis
}

func NewLedger(gdb *gorm.DB, rdb redisx.Redis) *Ledger {
	return &Ledger{db: gdb, rdb: rdb}
}

// Balance reads the current balance. A missing account reads as zero.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (int64, error) {
	var account db.CreditAccount
	err := l.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithMessagef(err, "read balance of %s", ownerID)
	}
	return account.Balance, nil
}

// Check is the optimistic pre-flight sufficiency test. It reserves nothing:
// the balance can still drain between Check and Debit under concurrent use.
func (l *Ledger) Check(ctx context.Context, ownerID string, minCost int64) (bool, error) {
	balance, err := l.Balance(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return balance >= minCost, nil
}

// Debit applies a charge and records the Transaction atomically. When the
// balance turns out insufficient at debit time the charge is still applied:
// the response was already generated and delivered, so we honor it and flag
// the transaction as an overdraft for reconciliation instead of failing.
func (l *Ledger) Debit(ctx context.Context, ownerID string, amount int64, reason Reason, sessionID string) (int64, db.Transaction, error) {
	if amount <= 0 {
		return 0, db.Transaction{}, errors.Errorf("debit amount must be positive, got %d", amount)
	}
	return l.apply(ctx, ownerID, -amount, reason, sessionID)
}

// Credit adds funds (purchase, promo). Same serialization as Debit.
func (l *Ledger) Credit(ctx context.Context, ownerID string, amount int64, reason Reason) (int64, db.Transaction, error) {
	if amount <= 0 {
		return 0, db.Transaction{}, errors.Errorf("credit amount must be positive, got %d", amount)
	}
	return l.apply(ctx, ownerID, amount, reason, "")
}

func (l *Ledger) apply(ctx context.Context, ownerID string, amount int64, reason Reason, sessionID string) (int64, db.Transaction, error) {
	var txn db.Transaction
	var newBalance int64

	lock := redisx.NewDistributedLock(l.rdb, redisx.LockOptions{
		Key:           ownerLockPrefix + ownerID,
		Expiration:    10 * time.Second,
		MaxRetryCount: 50,
		RetryInterval: 20 * time.Millisecond,
	})
	err := lock.ExecuteWithLock(ctx, func() error {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			read := tx
			// sqlite has no SELECT ... FOR UPDATE; there the redis lock
			// alone serializes owners.
			if tx.Dialector.Name() == "mysql" {
				read = tx.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			var account db.CreditAccount
			err := read.
				Where("owner_id = ?", ownerID).
				First(&account).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				account = db.CreditAccount{OwnerID: ownerID}
				if err := tx.Create(&account).Error; err != nil {
					return errors.WithMessage(err, "create credit account")
				}
			} else if err != nil {
				return errors.WithMessage(err, "lock credit account")
			}

			overdraft := false
			if amount < 0 && account.Balance < -amount {
				overdraft = true
				logs.Warnf("overdraft debit: owner=%s balance=%d amount=%d session=%s reason=%s",
					ownerID, account.Balance, -amount, sessionID, reason)
			}

			account.Balance += amount
			if err := tx.Model(&db.CreditAccount{}).
				Where("owner_id = ?", ownerID).
				Update("balance", account.Balance).Error; err != nil {
				return errors.WithMessage(err, "update balance")
			}

			txn = db.Transaction{
				OwnerID:          ownerID,
				Amount:           amount,
				Reason:           string(reason),
				ResultingBalance: account.Balance,
				SessionID:        sessionID,
				Overdraft:        overdraft,
			}
			txn.ID = uuid.New().String()
			if err := tx.Create(&txn).Error; err != nil {
				return errors.WithMessage(err, "record transaction")
			}
			newBalance = account.Balance
			return nil
		})
	})
	if err != nil {
		return 0, db.Transaction{}, errors.WithMessagef(err, "ledger apply for %s", ownerID)
	}
	return newBalance, txn, nil
}
