package audit

import "time"

// Event is emitted from domain logic to capture compliance-relevant actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	RequestID string    `json:"request_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Audit event actions.
const (
	ActionConsentRecorded   = "consent_recorded"
	ActionConsentWithdrawn  = "consent_withdrawn"
	ActionRequestSubmitted  = "request_submitted"
	ActionRequestCompleted  = "request_completed"
	ActionRequestFailed     = "request_failed"
	ActionDataExported      = "data_exported"
	ActionDataDeleted       = "data_deleted"
	ActionDataAnonymized    = "data_anonymized"
	ActionRetentionHoldSet  = "retention_hold_set"
	ActionRetentionReleased = "retention_hold_released"
)
