/*
2026 © Postgres.ai
*/

package models

import (
	"time"
)

// Transaction actions.
const (
	ActionNavigate = "navigate"
	ActionInput    = "input"
	ActionCapture  = "capture"
)

// TransactionData represents an audit record of one protocol action.
type TransactionData struct {
	RequestID          string    `json:"requestId"`
	Action             string    `json:"action"`
	ActionContext      string    `json:"actionContext"`
	Credential         string    `json:"credential"`
	SessionID          string    `json:"sessionId"`
	CallingApplication string    `json:"callingApplication"`
	Tags               []string  `json:"tags,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}
