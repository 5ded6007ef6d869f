package stream

import (
	"encoding/json"
	"fmt"
)

// Frame is the unit pushed to the SSE client. Credit fields appear only on
// the final frame of a successfully charged session.
type Frame struct {
	SessionID        string `json:"sessionId"`
	Content          string `json:"content,omitempty"`
	Done             bool   `json:"done,omitempty"`
	Error            string `json:"error,omitempty"`
	CreditsUsed      *int64 `json:"creditsUsed,omitempty"`
	CreditsRemaining *int64 `json:"creditsRemaining,omitempty"`
}

func (f Frame) JSON() string {
	b, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Encode renders the frame as a complete server-sent event.
func Encode(f Frame) string {
	return fmt.Sprintf("data: %s\n\n", f.JSON())
}
