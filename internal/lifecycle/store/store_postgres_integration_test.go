//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"leadcrm/internal/lifecycle/models"
	"leadcrm/internal/lifecycle/store"
	"leadcrm/pkg/platform/sentinel"
	"leadcrm/pkg/testutil"
	"leadcrm/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "lifecycle_requests")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	req := testutil.NewDeletionRequest(testutil.TestSubjects.Jane, models.StrategyAnonymize)

	s.Require().NoError(s.store.Create(ctx, req))

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.Subject, found.Subject)
	s.Equal(models.KindDeletion, found.Kind)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(models.StrategyAnonymize, found.Strategy)
	s.Equal(req.Requester, found.Requester)
	s.Nil(found.CompletedAt)
	s.Empty(found.FailureReason)
}

func (s *PostgresStoreSuite) TestUpdatePersistsArtifactAndTerminalState() {
	ctx := context.Background()
	req := testutil.NewExportRequest(testutil.TestSubjects.Jane)
	s.Require().NoError(s.store.Create(ctx, req))

	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Millisecond)
	s.Require().NoError(req.Transition(models.StatusProcessing))
	req.AttachArtifact("export_"+uuid.NewString(), expiry)
	s.Require().NoError(req.Complete(time.Now().UTC()))
	s.Require().NoError(s.store.Update(ctx, req))

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, found.Status)
	s.Equal(req.ArtifactKey, found.ArtifactKey)
	s.Require().NotNil(found.ArtifactExpiry)
	s.WithinDuration(expiry, *found.ArtifactExpiry, time.Second)
	s.NotNil(found.CompletedAt)
}

// The partial unique index serializes admission: many concurrent submissions
// for the same (subject, kind) pair must admit exactly one.
func (s *PostgresStoreSuite) TestConcurrentAdmissionSingleWinner() {
	ctx := context.Background()
	const goroutines = 50

	result := testutil.RunConcurrent(goroutines, func(idx int) error {
		req, err := models.NewRequest(
			fmt.Sprintf("req_%03d", idx),
			testutil.TestSubjects.Jane,
			models.KindExport,
			"",
			"dpo@leadcrm.example",
			time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		return s.store.Create(ctx, req)
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(goroutines-1), result.Conflicts)
	s.Equal(int32(0), result.Errors)

	var count int
	err := s.postgres.QueryRow(ctx,
		`SELECT COUNT(*) FROM lifecycle_requests WHERE subject = $1`,
		testutil.TestSubjects.Jane,
	).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestDifferentKindsAdmittedConcurrently() {
	ctx := context.Background()

	export := testutil.NewExportRequest(testutil.TestSubjects.Jane)
	deletion := testutil.NewDeletionRequest(testutil.TestSubjects.Jane, models.StrategyFull)

	s.Require().NoError(s.store.Create(ctx, export))
	s.Require().NoError(s.store.Create(ctx, deletion))

	reqs, err := s.store.ListBySubject(ctx, testutil.TestSubjects.Jane)
	s.Require().NoError(err)
	s.Len(reqs, 2)
}

func (s *PostgresStoreSuite) TestResubmissionAfterTerminal() {
	ctx := context.Background()

	first := testutil.NewExportRequest(testutil.TestSubjects.Jane)
	s.Require().NoError(s.store.Create(ctx, first))

	s.Require().NoError(first.Transition(models.StatusProcessing))
	s.Require().NoError(first.Fail(time.Now().UTC(), "collection failed"))
	s.Require().NoError(s.store.Update(ctx, first))

	// Terminal rows fall out of the partial index, so a fresh request for the
	// same pair is admitted.
	second := testutil.NewExportRequest(testutil.TestSubjects.Jane)
	s.Require().NoError(s.store.Create(ctx, second))

	duplicate := testutil.NewExportRequest(testutil.TestSubjects.Jane)
	s.ErrorIs(s.store.Create(ctx, duplicate), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindByIDUnknown() {
	_, err := s.store.FindByID(context.Background(), "req_missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
