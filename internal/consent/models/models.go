package models

import (
	"time"

	dErrors "leadcrm/pkg/domain-errors"
)

// Type enumerates the closed set of consent purposes tracked by the ledger.
type Type string

const (
	TypeMarketing      Type = "marketing"
	TypeAnalytics      Type = "analytics"
	TypeFunctional     Type = "functional"
	TypeDataProcessing Type = "data-processing"
)

// IsValid reports whether the consent type is part of the closed set.
func (t Type) IsValid() bool {
	switch t {
	case TypeMarketing, TypeAnalytics, TypeFunctional, TypeDataProcessing:
		return true
	}
	return false
}

// Method captures how consent was obtained.
type Method string

const (
	MethodExplicit           Method = "explicit"
	MethodImplicit           Method = "implicit"
	MethodLegitimateInterest Method = "legitimate-interest"
)

// IsValid reports whether the method is recognized.
func (m Method) IsValid() bool {
	switch m {
	case MethodExplicit, MethodImplicit, MethodLegitimateInterest:
		return true
	}
	return false
}

// Record captures a subject's consent decision for a specific type.
//
// # Effective-Grant Invariant
//
// For a given (Subject, Type) pair, at most one record has Given=true and
// WithdrawnAt=nil at any time. The store layer enforces this at save time;
// the service rejects a second active grant with CodeDuplicateConsent.
type Record struct {
	ID               string     `json:"id"`
	Subject          string     `json:"subject"`
	Type             Type       `json:"type"`
	Given            bool       `json:"given"`
	Method           Method     `json:"method"`
	Context          string     `json:"context,omitempty"`
	GrantedAt        time.Time  `json:"grantedAt"`
	WithdrawnAt      *time.Time `json:"withdrawnAt,omitempty"`
	WithdrawalReason string     `json:"withdrawalReason,omitempty"`
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(id, subject string, consentType Type, given bool, method Method, consentContext string, grantedAt time.Time) (*Record, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject required")
	}
	if !consentType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid consent type")
	}
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid consent method")
	}
	if grantedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "grant time required")
	}
	return &Record{
		ID:        id,
		Subject:   subject,
		Type:      consentType,
		Given:     given,
		Method:    method,
		Context:   consentContext,
		GrantedAt: grantedAt,
	}, nil
}

// IsActive returns true when the record is a currently effective grant.
func (c Record) IsActive() bool {
	return c.Given && c.WithdrawnAt == nil
}

// CanWithdraw returns true if the record is an active grant that can be withdrawn.
func (c Record) CanWithdraw() bool {
	return c.IsActive()
}
