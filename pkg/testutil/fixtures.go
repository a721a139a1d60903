package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	consentmodels "leadcrm/internal/consent/models"
	lifecyclemodels "leadcrm/internal/lifecycle/models"
	subjectmodels "leadcrm/internal/subject/models"
)

// TestSubjects provides canonical subject emails for deterministic test data.
var TestSubjects = struct {
	Jane  string
	Bob   string
	Empty string
}{
	Jane:  "jane.doe@example.com",
	Bob:   "bob.smith@example.com",
	Empty: "nobody@example.com",
}

// BaseTime is a fixed reference instant for fixtures that need stable timestamps.
var BaseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// NewProfile builds a profile for the given subject email.
func NewProfile(email string) *subjectmodels.Profile {
	return &subjectmodels.Profile{
		ID:        "prof_" + uuid.NewString(),
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Phone:     "+1-555-0100",
		Company:   "Acme Corp",
		CreatedAt: BaseTime,
	}
}

// NewLead builds a lead for the given subject email.
func NewLead(email string) *subjectmodels.Lead {
	return &subjectmodels.Lead{
		ID:        "lead_" + uuid.NewString(),
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Phone:     "+1-555-0100",
		Company:   "Acme Corp",
		Status:    "qualified",
		Source:    "webform",
		Notes:     "Asked for an annual quote",
		CreatedAt: BaseTime,
	}
}

// NewTask builds a task attached to the given lead.
func NewTask(leadID string) *subjectmodels.Task {
	return &subjectmodels.Task{
		ID:          "task_" + uuid.NewString(),
		LeadID:      leadID,
		Title:       "Follow up",
		Description: "Call about renewal",
		Status:      "open",
		CreatedAt:   BaseTime,
	}
}

// NewActivity builds an activity attached to the given lead.
func NewActivity(leadID string) *subjectmodels.Activity {
	return &subjectmodels.Activity{
		ID:         "act_" + uuid.NewString(),
		LeadID:     leadID,
		Kind:       "call",
		Summary:    "Discussed pricing tiers",
		OccurredAt: BaseTime,
	}
}

// NewCommunication builds a communication attached to the given lead.
func NewCommunication(leadID string) *subjectmodels.Communication {
	return &subjectmodels.Communication{
		ID:        "comm_" + uuid.NewString(),
		LeadID:    leadID,
		Channel:   "email",
		Direction: "outbound",
		Subject:   "Your quote",
		Body:      "Attached is the quote we discussed.",
		SentAt:    BaseTime,
	}
}

// NewConsentRecord builds an active consent grant for the subject.
// Panics on invalid inputs; fixtures are static test data.
func NewConsentRecord(subject string, consentType consentmodels.Type) *consentmodels.Record {
	rec, err := consentmodels.NewRecord(
		"consent_"+uuid.NewString(),
		subject,
		consentType,
		true,
		consentmodels.MethodExplicit,
		"signup form",
		BaseTime,
	)
	if err != nil {
		panic(fmt.Sprintf("testutil: build consent record: %v", err))
	}
	return rec
}

// NewExportRequest builds a pending export request for the subject.
func NewExportRequest(subject string) *lifecyclemodels.Request {
	req, err := lifecyclemodels.NewRequest(
		"req_"+uuid.NewString(),
		subject,
		lifecyclemodels.KindExport,
		"",
		"dpo@leadcrm.example",
		BaseTime,
	)
	if err != nil {
		panic(fmt.Sprintf("testutil: build export request: %v", err))
	}
	return req
}

// NewDeletionRequest builds a pending deletion request for the subject with
// the given strategy.
func NewDeletionRequest(subject string, strategy lifecyclemodels.Strategy) *lifecyclemodels.Request {
	req, err := lifecyclemodels.NewRequest(
		"req_"+uuid.NewString(),
		subject,
		lifecyclemodels.KindDeletion,
		strategy,
		"dpo@leadcrm.example",
		BaseTime,
	)
	if err != nil {
		panic(fmt.Sprintf("testutil: build deletion request: %v", err))
	}
	return req
}
