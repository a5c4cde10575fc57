/*
2026 © Postgres.ai
*/

package models

// Audit represents an audit log line of an accepted request.
type Audit struct {
	RequestID           string `json:"requestId"`
	ClientTrackingID    string `json:"clientTrackingId,omitempty"`
	CallingApplication  string `json:"callingApplication"`
	LogonInstructionSet string `json:"logonInstructionSet"`
	QueryInstructionSet string `json:"queryInstructionSet"`
	ParseInstructionSet string `json:"parseInstructionSet,omitempty"`
}
