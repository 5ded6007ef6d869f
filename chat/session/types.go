package session

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status allows no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

type Session struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	Status            Status `json:"status"`
	ChunksReceived    int64  `json:"chunks_received"`
	AccumulatedLength int64  `json:"accumulated_length"`
	Depth             int64  `json:"depth"`
	StartedAt         int64  `json:"started_at"`
	CompletedAt       int64  `json:"completed_at,omitempty"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}
