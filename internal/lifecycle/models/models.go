// Package models defines the data-subject lifecycle request and its state
// machine.
package models

import (
	"time"

	dErrors "leadcrm/pkg/domain-errors"
)

// Kind distinguishes export from deletion requests.
type Kind string

const (
	KindExport   Kind = "export"
	KindDeletion Kind = "deletion"
)

// IsValid reports whether the kind is a known request kind.
func (k Kind) IsValid() bool {
	return k == KindExport || k == KindDeletion
}

// Status is a lifecycle request state. Completed and failed are absorbing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal state-machine edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Strategy selects how a deletion request disposes of the subject's data.
type Strategy string

const (
	StrategyFull      Strategy = "full"
	StrategyAnonymize Strategy = "anonymize"
	StrategyRetain    Strategy = "retain"
)

// IsValid reports whether the strategy is a known deletion strategy.
func (s Strategy) IsValid() bool {
	return s == StrategyFull || s == StrategyAnonymize || s == StrategyRetain
}

// Request is a durable export or deletion request. Rows are created at
// admission and mutated only by the owning background execution; they are
// never deleted, forming the audit trail of compliance actions.
type Request struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	Kind           Kind       `json:"kind"`
	Status         Status     `json:"status"`
	Strategy       Strategy   `json:"strategy,omitempty"`
	Requester      string     `json:"requester,omitempty"`
	SubmittedAt    time.Time  `json:"submittedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ArtifactKey    string     `json:"artifactKey,omitempty"`
	ArtifactExpiry *time.Time `json:"artifactExpiry,omitempty"`
	RetainUntil    *time.Time `json:"retainUntil,omitempty"`
	FailureReason  string     `json:"failureReason,omitempty"`

	// DownloadURL is computed per status read, never persisted. It is only
	// set on completed exports whose artifact has not expired.
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// NewRequest validates inputs and builds a pending request.
func NewRequest(id, subject string, kind Kind, strategy Strategy, requester string, now time.Time) (*Request, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid request kind")
	}
	switch kind {
	case KindDeletion:
		if !strategy.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "deletion requests require a valid strategy")
		}
	case KindExport:
		if strategy != "" {
			return nil, dErrors.New(dErrors.CodeValidation, "export requests do not take a strategy")
		}
	}
	return &Request{
		ID:          id,
		Subject:     subject,
		Kind:        kind,
		Status:      StatusPending,
		Strategy:    strategy,
		Requester:   requester,
		SubmittedAt: now,
	}, nil
}

// InFlight reports whether the request blocks admission of another request of
// the same kind for the same subject.
func (r *Request) InFlight() bool {
	return !r.Status.Terminal()
}

// Transition moves the request to a new status, enforcing the state machine.
func (r *Request) Transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"cannot transition request from "+string(r.Status)+" to "+string(to))
	}
	r.Status = to
	return nil
}

// Complete marks the request completed at the given time.
func (r *Request) Complete(now time.Time) error {
	if err := r.Transition(StatusCompleted); err != nil {
		return err
	}
	completedAt := now
	r.CompletedAt = &completedAt
	return nil
}

// Fail marks the request failed at the given time, recording the reason.
func (r *Request) Fail(now time.Time, reason string) error {
	if err := r.Transition(StatusFailed); err != nil {
		return err
	}
	completedAt := now
	r.CompletedAt = &completedAt
	r.FailureReason = reason
	return nil
}

// AttachArtifact records the stored export artifact reference and its expiry.
func (r *Request) AttachArtifact(key string, expiresAt time.Time) {
	r.ArtifactKey = key
	expiry := expiresAt
	r.ArtifactExpiry = &expiry
}
