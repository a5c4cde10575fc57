/*
2026 © Postgres.ai
*/

package models

import (
	"time"
)

// RequestStatus defines a lifecycle status of a request session.
type RequestStatus string

// Request statuses in lifecycle order.
const (
	StatusStarted                  RequestStatus = "Started"
	StatusInProgress               RequestStatus = "InProgress"
	StatusInvokingMainframeQuery   RequestStatus = "InvokingMainframeQuery"
	StatusParsingMainframeResponse RequestStatus = "ParsingMainframeResponse"
	StatusComplete                 RequestStatus = "Complete"
	StatusFailed                   RequestStatus = "Failed"
)

var statusOrder = map[RequestStatus]int{
	StatusStarted:                  0,
	StatusInProgress:               1,
	StatusInvokingMainframeQuery:   2,
	StatusParsingMainframeResponse: 3,
	StatusComplete:                 4,
}

// IsTerminal checks if no further transitions are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransitionTo checks that the status only moves forward.
// Failed is reachable from every non-terminal status, Complete is never reached from Started.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if s.IsTerminal() {
		return false
	}

	if next == StatusFailed {
		return true
	}

	from, ok := statusOrder[s]
	if !ok {
		return false
	}

	to, ok := statusOrder[next]
	if !ok {
		return false
	}

	if s == StatusStarted && next == StatusComplete {
		return false
	}

	return to > from
}

// RequestSession defines a single inbound request and its outcome.
type RequestSession struct {
	RequestID        string
	SessionID        string
	ClientTrackingID string
	ClientRequest    string
	Status           RequestStatus
	RawOutput        string
	ParsedOutput     string
	CreatedAt        time.Time
}

// Parameter defines a named request value available to instruction placeholders.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// QueryRequest defines a request message delivered by the queue.
type QueryRequest struct {
	RequestID           string      `json:"requestId"`
	LogonInstructionSet string      `json:"logonInstructionSet"`
	QueryInstructionSet string      `json:"queryInstructionSet"`
	ParseInstructionSet string      `json:"parseInstructionSet,omitempty"`
	Parameters          []Parameter `json:"parameters,omitempty"`
	CallingApplication  string      `json:"callingApplication"`
	TimeoutSeconds      int         `json:"timeoutSeconds,omitempty"`
	ClientTrackingID    string      `json:"clientTrackingId,omitempty"`
}

// ParameterMap returns request parameters indexed by name.
func (r QueryRequest) ParameterMap() map[string]string {
	values := make(map[string]string, len(r.Parameters))

	for _, p := range r.Parameters {
		values[p.Name] = p.Value
	}

	return values
}

// Timeout returns the request time limit, zero means no limit.
func (r QueryRequest) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 0
	}

	return time.Duration(r.TimeoutSeconds) * time.Second
}
