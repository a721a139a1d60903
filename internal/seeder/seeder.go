// Package seeder populates in-memory stores with demo CRM data so the
// privacy endpoints have subjects to operate on without a database.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	consentmodels "leadcrm/internal/consent/models"
	consentstore "leadcrm/internal/consent/store"
	subjectmodels "leadcrm/internal/subject/models"
	subjectstore "leadcrm/internal/subject/store"
)

// Seeder populates in-memory stores with demo data.
type Seeder struct {
	subjects *subjectstore.InMemoryStore
	consents *consentstore.InMemoryStore
	logger   *slog.Logger
}

// New creates a new seeder.
func New(subjects *subjectstore.InMemoryStore, consents *consentstore.InMemoryStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		subjects: subjects,
		consents: consents,
		logger:   logger,
	}
}

// SeedAll populates all stores with demo data.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	subjects, err := s.seedSubjects()
	if err != nil {
		return fmt.Errorf("failed to seed subjects: %w", err)
	}

	if err := s.seedConsents(ctx, subjects); err != nil {
		return fmt.Errorf("failed to seed consents: %w", err)
	}

	s.logger.Info("demo data seeded successfully", "subjects", len(subjects))
	return nil
}

func (s *Seeder) seedSubjects() ([]string, error) {
	now := time.Now()

	demoSubjects := []struct {
		email     string
		firstName string
		lastName  string
		company   string
		leads     int
	}{
		{"alice@example.com", "Alice", "Anderson", "Anderson Logistics", 2},
		{"bob@example.com", "Bob", "Brown", "Brown Roofing", 1},
		{"charlie@example.com", "Charlie", "Chen", "Chen Analytics", 3},
		{"diana@example.com", "Diana", "Davis", "Davis Legal", 1},
		{"eve@example.com", "Eve", "Evans", "Evans Media", 0},
	}

	var subjects []string
	for _, d := range demoSubjects {
		s.subjects.AddProfile(&subjectmodels.Profile{
			ID:        "prof_" + uuid.NewString(),
			Email:     d.email,
			FirstName: d.firstName,
			LastName:  d.lastName,
			Phone:     "+1-555-0142",
			Company:   d.company,
			CreatedAt: now.Add(-30 * 24 * time.Hour),
		})

		for i := 0; i < d.leads; i++ {
			lead := &subjectmodels.Lead{
				ID:        "lead_" + uuid.NewString(),
				Email:     d.email,
				FirstName: d.firstName,
				LastName:  d.lastName,
				Phone:     "+1-555-0142",
				Company:   d.company,
				Status:    "qualified",
				Source:    "webform",
				Notes:     "Requested a demo",
				CreatedAt: now.Add(-time.Duration(i+1) * 24 * time.Hour),
			}
			s.subjects.AddLead(lead)

			s.subjects.AddTask(&subjectmodels.Task{
				ID:          "task_" + uuid.NewString(),
				LeadID:      lead.ID,
				Title:       "Follow up",
				Description: fmt.Sprintf("Call %s about the demo", d.firstName),
				Status:      "open",
				CreatedAt:   now,
			})
			s.subjects.AddActivity(&subjectmodels.Activity{
				ID:         "act_" + uuid.NewString(),
				LeadID:     lead.ID,
				Kind:       "call",
				Summary:    "Discussed pricing tiers",
				OccurredAt: now.Add(-12 * time.Hour),
			})
			s.subjects.AddCommunication(&subjectmodels.Communication{
				ID:        "comm_" + uuid.NewString(),
				LeadID:    lead.ID,
				Channel:   "email",
				Direction: "outbound",
				Subject:   "Your demo follow-up",
				Body:      "Thanks for your time today.",
				SentAt:    now.Add(-6 * time.Hour),
			})
		}

		subjects = append(subjects, d.email)
	}

	return subjects, nil
}

func (s *Seeder) seedConsents(ctx context.Context, subjects []string) error {
	now := time.Now()

	grants := []struct {
		subjectIdx int
		kind       consentmodels.Type
		method     consentmodels.Method
		offset     time.Duration
	}{
		{0, consentmodels.TypeMarketing, consentmodels.MethodExplicit, -29 * 24 * time.Hour},
		{0, consentmodels.TypeAnalytics, consentmodels.MethodImplicit, -29 * 24 * time.Hour},
		{1, consentmodels.TypeMarketing, consentmodels.MethodExplicit, -20 * 24 * time.Hour},
		{2, consentmodels.TypeDataProcessing, consentmodels.MethodExplicit, -15 * 24 * time.Hour},
		{2, consentmodels.TypeFunctional, consentmodels.MethodImplicit, -15 * 24 * time.Hour},
		{3, consentmodels.TypeMarketing, consentmodels.MethodLegitimateInterest, -10 * 24 * time.Hour},
	}

	for _, g := range grants {
		if g.subjectIdx >= len(subjects) {
			continue
		}

		record, err := consentmodels.NewRecord(
			"consent_"+uuid.NewString(),
			subjects[g.subjectIdx],
			g.kind,
			true,
			g.method,
			"signup form",
			now.Add(g.offset),
		)
		if err != nil {
			return err
		}
		if err := s.consents.Save(ctx, record); err != nil {
			return err
		}
	}

	return nil
}
