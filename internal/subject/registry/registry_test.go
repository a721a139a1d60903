package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	consentmodels "leadcrm/internal/consent/models"
	consentstore "leadcrm/internal/consent/store"
	"leadcrm/internal/subject/models"
	subjectstore "leadcrm/internal/subject/store"
)

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	subjects *subjectstore.InMemoryStore
	consents *consentstore.InMemoryStore
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.subjects = subjectstore.New()
	s.consents = consentstore.New()
	s.registry = New(s.subjects, s.consents, slog.Default())
}

func (s *RegistrySuite) seedJane() {
	s.subjects.AddProfile(&models.Profile{ID: "prof-1", Email: "jane@example.com"})
	s.subjects.AddLead(&models.Lead{ID: "lead-1", Email: "jane@example.com"})
	s.subjects.AddLead(&models.Lead{ID: "lead-2", Email: "jane@example.com"})
	s.subjects.AddLead(&models.Lead{ID: "lead-3", Email: "jane@example.com"})
	for _, id := range []string{"task-1", "task-2", "task-3", "task-4", "task-5"} {
		s.subjects.AddTask(&models.Task{ID: id, LeadID: "lead-1"})
	}
	s.subjects.AddActivity(&models.Activity{ID: "act-1", LeadID: "lead-2"})
	s.subjects.AddCommunication(&models.Communication{ID: "comm-1", LeadID: "lead-3"})

	for i, ct := range []consentmodels.Type{consentmodels.TypeMarketing, consentmodels.TypeAnalytics} {
		rec, err := consentmodels.NewRecord(
			"consent-"+string(rune('1'+i)), "jane@example.com", ct, true,
			consentmodels.MethodExplicit, "signup form", time.Now(),
		)
		s.Require().NoError(err)
		s.Require().NoError(s.consents.Save(s.ctx, rec))
	}
}

func (s *RegistrySuite) TestLoadFullGraph() {
	s.seedJane()

	g, err := s.registry.Load(s.ctx, "jane@example.com")
	s.Require().NoError(err)

	s.Require().NotNil(g.Profile)
	s.Len(g.Leads, 3)
	s.Len(g.Tasks, 5)
	s.Len(g.Activities, 1)
	s.Len(g.Communications, 1)
	s.Len(g.Consents, 2)
	s.False(g.Empty())
}

func (s *RegistrySuite) TestRelatedRecordIDs() {
	s.seedJane()

	set, err := s.registry.RelatedRecordIDs(s.ctx, "jane@example.com")
	s.Require().NoError(err)

	s.Equal([]string{"prof-1"}, set.IDs(models.TableProfiles))
	s.Len(set.IDs(models.TableLeads), 3)
	s.Len(set.IDs(models.TableTasks), 5)
	s.Len(set.IDs(models.TableConsents), 2)
	s.Equal(13, set.Count())
}

func (s *RegistrySuite) TestUnknownSubjectYieldsEmptyGraph() {
	g, err := s.registry.Load(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.True(g.Empty())
	s.Equal(0, g.RecordSet().Count())
}

func (s *RegistrySuite) TestProfilelessSubjectStillResolvesLeads() {
	s.subjects.AddLead(&models.Lead{ID: "lead-9", Email: "orphan@example.com"})
	s.subjects.AddTask(&models.Task{ID: "task-9", LeadID: "lead-9"})

	g, err := s.registry.Load(s.ctx, "orphan@example.com")
	s.Require().NoError(err)
	s.Nil(g.Profile)
	s.Len(g.Leads, 1)
	s.Len(g.Tasks, 1)
	s.False(g.Empty())
}

func (s *RegistrySuite) TestDiscoveryReflectsLiveData() {
	s.seedJane()

	before, err := s.registry.RelatedRecordIDs(s.ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Len(before.IDs(models.TableTasks), 5)

	_, err = s.subjects.DeleteTasks(s.ctx, []string{"task-1", "task-2"})
	s.Require().NoError(err)

	after, err := s.registry.RelatedRecordIDs(s.ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Len(after.IDs(models.TableTasks), 3)
}
