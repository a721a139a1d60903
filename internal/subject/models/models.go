package models

import "time"

// Table identifies a subject-bearing table in the CRM schema.
type Table string

const (
	TableProfiles       Table = "profiles"
	TableLeads          Table = "leads"
	TableTasks          Table = "tasks"
	TableActivities     Table = "activities"
	TableCommunications Table = "communications"
	TableConsents       Table = "consent_records"
)

// MutableColumns lists, per table, the columns that anonymization rules may
// touch. Primary keys, foreign keys, and timestamps are deliberately absent:
// rules must preserve referential integrity and historical shape.
var MutableColumns = map[Table][]string{
	TableProfiles:       {"email", "first_name", "last_name", "phone", "company"},
	TableLeads:          {"email", "first_name", "last_name", "phone", "company", "notes"},
	TableTasks:          {"description"},
	TableActivities:     {"summary"},
	TableCommunications: {"subject", "body"},
}

// IsMutableColumn reports whether column may be rewritten on table.
func IsMutableColumn(table Table, column string) bool {
	for _, c := range MutableColumns[table] {
		if c == column {
			return true
		}
	}
	return false
}

// Profile is the CRM user/profile row for a subject.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Lead is a sales lead owned by a subject.
type Lead struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Phone         string     `json:"phone,omitempty"`
	Company       string     `json:"company,omitempty"`
	Status        string     `json:"status"`
	Source        string     `json:"source,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	RetentionHold bool       `json:"retentionHold,omitempty"`
	RetainUntil   *time.Time `json:"retainUntil,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Task is a follow-up item attached to a lead.
type Task struct {
	ID          string     `json:"id"`
	LeadID      string     `json:"leadId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Activity is a logged interaction attached to a lead.
type Activity struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"leadId"`
	Kind       string    `json:"kind"`
	Summary    string    `json:"summary,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Communication is a message (email, call note) attached to a lead.
type Communication struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId"`
	Channel   string    `json:"channel"`
	Direction string    `json:"direction"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// RecordSet is the computed view of a subject's related record identifiers,
// keyed by table. It is never persisted; the registry produces it and the
// deletion coordinator and collector consume it transiently.
type RecordSet map[Table][]string

// Count returns the total number of record ids across all tables.
func (r RecordSet) Count() int {
	total := 0
	for _, ids := range r {
		total += len(ids)
	}
	return total
}

// IDs returns the ids recorded for a table, nil when the table is absent.
func (r RecordSet) IDs(table Table) []string {
	return r[table]
}
