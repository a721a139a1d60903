package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"leadcrm/internal/lifecycle/models"
	"leadcrm/pkg/platform/sentinel"
)

// PostgresStore persists lifecycle requests in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, req *models.Request) error {
	if req == nil {
		return fmt.Errorf("lifecycle request is required")
	}
	// The partial unique index on (subject, kind) WHERE status IN
	// ('pending','processing') serializes admission at the database: two
	// concurrent inserts for the same in-flight pair cannot both land.
	query := `
		INSERT INTO lifecycle_requests (id, subject, kind, status, strategy, requester, submitted_at,
		                               completed_at, artifact_key, artifact_expiry, retain_until, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (subject, kind) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING id
	`
	var storedID string
	err := s.db.QueryRowContext(ctx, query,
		req.ID,
		req.Subject,
		string(req.Kind),
		string(req.Status),
		nullString(string(req.Strategy)),
		req.Requester,
		req.SubmittedAt,
		req.CompletedAt,
		nullString(req.ArtifactKey),
		req.ArtifactExpiry,
		req.RetainUntil,
		nullString(req.FailureReason),
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create lifecycle request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Request, error) {
	query := selectRequest + ` WHERE id = $1`
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find lifecycle request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) Update(ctx context.Context, req *models.Request) error {
	query := `
		UPDATE lifecycle_requests
		SET status = $2, completed_at = $3, artifact_key = $4, artifact_expiry = $5,
		    retain_until = $6, failure_reason = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		req.ID,
		string(req.Status),
		req.CompletedAt,
		nullString(req.ArtifactKey),
		req.ArtifactExpiry,
		req.RetainUntil,
		nullString(req.FailureReason),
	)
	if err != nil {
		return fmt.Errorf("update lifecycle request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lifecycle request rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]*models.Request, error) {
	query := selectRequest + ` WHERE subject = $1 ORDER BY submitted_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list lifecycle requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lifecycle request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle requests: %w", err)
	}
	return requests, nil
}

const selectRequest = `
	SELECT id, subject, kind, status, strategy, requester, submitted_at,
	       completed_at, artifact_key, artifact_expiry, retain_until, failure_reason
	FROM lifecycle_requests`

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*models.Request, error) {
	var req models.Request
	var kind, status string
	var strategy, artifactKey, failureReason sql.NullString
	var completedAt, artifactExpiry, retainUntil sql.NullTime
	if err := row.Scan(
		&req.ID,
		&req.Subject,
		&kind,
		&status,
		&strategy,
		&req.Requester,
		&req.SubmittedAt,
		&completedAt,
		&artifactKey,
		&artifactExpiry,
		&retainUntil,
		&failureReason,
	); err != nil {
		return nil, err
	}
	req.Kind = models.Kind(kind)
	req.Status = models.Status(status)
	if strategy.Valid {
		req.Strategy = models.Strategy(strategy.String)
	}
	if completedAt.Valid {
		req.CompletedAt = &completedAt.Time
	}
	if artifactKey.Valid {
		req.ArtifactKey = artifactKey.String
	}
	if artifactExpiry.Valid {
		req.ArtifactExpiry = &artifactExpiry.Time
	}
	if retainUntil.Valid {
		req.RetainUntil = &retainUntil.Time
	}
	if failureReason.Valid {
		req.FailureReason = failureReason.String
	}
	return &req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
