package service

import "github.com/xiehqing/streamcore/chat/db"

type StreamRequest struct {
	OwnerID   string `json:"owner_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

type ContinueRequest struct {
	ChatSessionID   string `json:"chat_session_id"`
	Reason          string `json:"reason"`
	PreserveContext *bool  `json:"preserve_context"`
}

type GrantRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type BalanceResponse struct {
	OwnerID string           `json:"owner_id"`
	Balance int64            `json:"balance"`
	Recent  []db.Transaction `json:"recent,omitempty"`
}
