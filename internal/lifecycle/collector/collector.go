// Package collector assembles the complete export document for a subject.
package collector

import (
	"context"
	"log/slog"
	"time"

	"leadcrm/internal/audit"
	consentmodels "leadcrm/internal/consent/models"
	"leadcrm/internal/subject/models"
	"leadcrm/internal/subject/registry"
	dErrors "leadcrm/pkg/domain-errors"
)

// ExportDocument is persisted as a blob and handed to the subject via an
// expiring URL. Its shape is stable across versions: changes are additive
// only, and absent domains are omitted keys rather than empty arrays, so
// "no data" stays distinguishable from "not queried".
type ExportDocument struct {
	ExportedAt time.Time  `json:"exportedAt"`
	Subject    string     `json:"subject"`
	Data       ExportData `json:"data"`
}

// ExportData groups the exported domains. All fields omit when empty.
type ExportData struct {
	Profile        *models.Profile         `json:"profile,omitempty"`
	Leads          []*models.Lead          `json:"leads,omitempty"`
	Tasks          []*models.Task          `json:"tasks,omitempty"`
	Activities     []*models.Activity      `json:"activities,omitempty"`
	Communications []*models.Communication `json:"communications,omitempty"`
	Consents       []*consentmodels.Record `json:"consents,omitempty"`
	AuditEntries   []audit.Event           `json:"auditEntries,omitempty"`
}

// GraphLoader materializes the subject's record graph.
type GraphLoader interface {
	Load(ctx context.Context, email string) (*registry.Graph, error)
}

// AuditReader lists a subject's audit trail.
type AuditReader interface {
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
}

// Collector builds export documents. Collection has no partial-failure
// tolerance: any read error aborts the whole export.
type Collector struct {
	graphs GraphLoader
	audits AuditReader
	log    *slog.Logger
	now    func() time.Time
}

func New(graphs GraphLoader, audits AuditReader, log *slog.Logger) *Collector {
	return &Collector{graphs: graphs, audits: audits, log: log, now: time.Now}
}

// SetClock overrides the export timestamp clock. Test hook.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// Collect assembles the export document for a subject. Audit entries are
// included only when a profile exists; without one there is no identity to
// scope the trail to.
func (c *Collector) Collect(ctx context.Context, subject string) (*ExportDocument, error) {
	g, err := c.graphs.Load(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCollectionFailure, "collect subject data")
	}

	doc := &ExportDocument{
		ExportedAt: c.now().UTC(),
		Subject:    subject,
		Data: ExportData{
			Profile:        g.Profile,
			Leads:          g.Leads,
			Tasks:          g.Tasks,
			Activities:     g.Activities,
			Communications: g.Communications,
			Consents:       g.Consents,
		},
	}

	if g.Profile != nil {
		entries, err := c.audits.ListBySubject(ctx, subject)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCollectionFailure, "collect audit entries")
		}
		doc.Data.AuditEntries = entries
	}

	c.log.Info("export document assembled",
		"subject", subject,
		"leads", len(doc.Data.Leads),
		"tasks", len(doc.Data.Tasks),
		"consents", len(doc.Data.Consents),
		"audit_entries", len(doc.Data.AuditEntries),
	)
	return doc, nil
}
