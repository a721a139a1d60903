// Package registry resolves a subject's email to the full set of CRM records
// that belong to them, across profiles, leads, lead children, and consents.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	consentmodels "leadcrm/internal/consent/models"
	"leadcrm/internal/subject/models"
	"leadcrm/pkg/platform/sentinel"
	pstrings "leadcrm/pkg/platform/strings"
)

// SubjectReader is the subject-store surface the registry reads from.
type SubjectReader interface {
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindLeadsByEmail(ctx context.Context, email string) ([]*models.Lead, error)
	FindTasksByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Task, error)
	FindActivitiesByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Activity, error)
	FindCommunicationsByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Communication, error)
}

// ConsentReader is the consent-store surface the registry reads from.
type ConsentReader interface {
	ListBySubject(ctx context.Context, subject string) ([]*consentmodels.Record, error)
}

// Graph is a subject's materialized record graph. The collector serializes it
// into an export document; the deletion coordinator derives target ids from it.
type Graph struct {
	Subject        string
	Profile        *models.Profile
	Leads          []*models.Lead
	Tasks          []*models.Task
	Activities     []*models.Activity
	Communications []*models.Communication
	Consents       []*consentmodels.Record
}

// Empty reports whether the graph holds no records at all.
func (g *Graph) Empty() bool {
	return g.Profile == nil &&
		len(g.Leads) == 0 &&
		len(g.Tasks) == 0 &&
		len(g.Activities) == 0 &&
		len(g.Communications) == 0 &&
		len(g.Consents) == 0
}

// RecordSet projects the graph down to per-table record identifiers.
func (g *Graph) RecordSet() models.RecordSet {
	set := models.RecordSet{}
	if g.Profile != nil {
		set[models.TableProfiles] = []string{g.Profile.ID}
	}
	for _, l := range g.Leads {
		set[models.TableLeads] = append(set[models.TableLeads], l.ID)
	}
	for _, t := range g.Tasks {
		set[models.TableTasks] = append(set[models.TableTasks], t.ID)
	}
	for _, a := range g.Activities {
		set[models.TableActivities] = append(set[models.TableActivities], a.ID)
	}
	for _, c := range g.Communications {
		set[models.TableCommunications] = append(set[models.TableCommunications], c.ID)
	}
	for _, c := range g.Consents {
		set[models.TableConsents] = append(set[models.TableConsents], c.ID)
	}
	// Child rows can surface the same id once per owning lead when a lead
	// merge left dangling references.
	for table, ids := range set {
		set[table] = pstrings.DedupeAndTrim(ids)
	}
	return set
}

// Registry discovers subject-related records by email. Discovery is read-only
// and always runs against live data: record sets are computed per request,
// never cached, so a deletion that lands between two calls is reflected.
type Registry struct {
	subjects SubjectReader
	consents ConsentReader
	log      *slog.Logger
}

func New(subjects SubjectReader, consents ConsentReader, log *slog.Logger) *Registry {
	return &Registry{subjects: subjects, consents: consents, log: log}
}

// Load materializes the full record graph for a subject email. A subject with
// no profile can still own leads and consents, so a missing profile is not an
// error; callers that need existence use Graph.Empty.
func (r *Registry) Load(ctx context.Context, email string) (*Graph, error) {
	g := &Graph{Subject: email}

	profile, err := r.subjects.FindProfileByEmail(ctx, email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	g.Profile = profile

	g.Leads, err = r.subjects.FindLeadsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}

	leadIDs := make([]string, 0, len(g.Leads))
	for _, l := range g.Leads {
		leadIDs = append(leadIDs, l.ID)
	}

	if len(leadIDs) > 0 {
		g.Tasks, err = r.subjects.FindTasksByLeadIDs(ctx, leadIDs)
		if err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		g.Activities, err = r.subjects.FindActivitiesByLeadIDs(ctx, leadIDs)
		if err != nil {
			return nil, fmt.Errorf("load activities: %w", err)
		}
		g.Communications, err = r.subjects.FindCommunicationsByLeadIDs(ctx, leadIDs)
		if err != nil {
			return nil, fmt.Errorf("load communications: %w", err)
		}
	}

	g.Consents, err = r.consents.ListBySubject(ctx, email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("load consents: %w", err)
	}

	r.log.Debug("subject graph loaded",
		"subject", email,
		"leads", len(g.Leads),
		"tasks", len(g.Tasks),
		"activities", len(g.Activities),
		"communications", len(g.Communications),
		"consents", len(g.Consents),
	)
	return g, nil
}

// RelatedRecordIDs computes the per-table record identifiers for a subject.
func (r *Registry) RelatedRecordIDs(ctx context.Context, email string) (models.RecordSet, error) {
	g, err := r.Load(ctx, email)
	if err != nil {
		return nil, err
	}
	return g.RecordSet(), nil
}
