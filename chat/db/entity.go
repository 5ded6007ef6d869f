package db

import (
	"time"

	"github.com/xiehqing/streamcore/pkg/ormx"
)

type Session struct {
	ormx.UuidModel
	OwnerID           string     `json:"ownerId" gorm:"column:owner_id;index;not null;comment:'owner_id'"`
	Provider          string     `json:"provider" gorm:"column:provider;not null;comment:'provider'"`
	Model             string     `json:"model" gorm:"column:model;not null;comment:'model'"`
	Status            string     `json:"status" gorm:"column:status;index;not null;comment:'status'"`
	ChunksReceived    int64      `json:"chunksReceived" gorm:"column:chunks_received;not null;comment:'chunks_received'"`
	AccumulatedLength int64      `json:"accumulatedLength" gorm:"column:accumulated_length;not null;comment:'accumulated_length'"`
	Depth             int64      `json:"depth" gorm:"column:depth;not null;comment:'continuation depth'"`
	StartedAt         *time.Time `json:"startedAt" gorm:"column:started_at;comment:'started_at'"`
	CompletedAt       *time.Time `json:"completedAt" gorm:"column:completed_at;comment:'completed_at'"`
}

func (s *Session) TableName() string {
	return "chat_sessions"
}

type CreditAccount struct {
	OwnerID   string     `json:"ownerId" gorm:"column:owner_id;primaryKey;comment:'owner_id'"`
	Balance   int64      `json:"balance" gorm:"column:balance;not null;comment:'balance'"`
	CreatedAt *time.Time `json:"createdAt" gorm:"autoCreateTime;not null;comment:'创建时间'"`
	UpdatedAt *time.Time `json:"updatedAt" gorm:"autoUpdateTime;not null;comment:'更新时间'"`
}

func (a *CreditAccount) TableName() string {
	return "credit_accounts"
}

// Transaction is an immutable audit record, never updated or deleted here.
type Transaction struct {
	ormx.UuidModel
	OwnerID          string `json:"ownerId" gorm:"column:owner_id;index;not null;comment:'owner_id'"`
	Amount           int64  `json:"amount" gorm:"column:amount;not null;comment:'signed amount, negative for debits'"`
	Reason           string `json:"reason" gorm:"column:reason;not null;comment:'reason'"`
	ResultingBalance int64  `json:"resultingBalance" gorm:"column:resulting_balance;not null;comment:'resulting_balance'"`
	SessionID        string `json:"sessionId" gorm:"column:session_id;index;comment:'session back-reference'"`
	Overdraft        bool   `json:"overdraft" gorm:"column:overdraft;not null;comment:'debit applied with insufficient balance'"`
}

func (t *Transaction) TableName() string {
	return "credit_transactions"
}

type ContinuationLink struct {
	ormx.UuidModel
	ParentSessionID string `json:"parentSessionId" gorm:"column:parent_session_id;uniqueIndex;not null;comment:'parent_session_id'"`
	ChildSessionID  string `json:"childSessionId" gorm:"column:child_session_id;index;not null;comment:'child_session_id'"`
	Reason          string `json:"reason" gorm:"column:reason;comment:'why the continuation was requested'"`
	Depth           int64  `json:"depth" gorm:"column:depth;not null;comment:'depth of the child'"`
	ContextSummary  string `json:"contextSummary" gorm:"column:context_summary;type:longtext;comment:'context_summary'"`
}

func (l *ContinuationLink) TableName() string {
	return "continuation_links"
}

type Message struct {
	ormx.UuidModel
	SessionID string `json:"sessionId" gorm:"column:session_id;index;not null;comment:'session_id'"`
	Role      string `json:"role" gorm:"column:role;not null;comment:'role'"`
	Content   string `json:"content" gorm:"column:content;type:longtext;comment:'content'"`
	IsSummary bool   `json:"isSummary" gorm:"column:is_summary;not null;comment:'seeded continuation summary'"`
}

func (m *Message) TableName() string {
	return "chat_messages"
}
