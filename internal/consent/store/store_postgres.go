package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadcrm/internal/consent/models"
	"leadcrm/pkg/platform/sentinel"
)

// PostgresStore persists consent records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed consent store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, consent *models.Record) error {
	if consent == nil {
		return fmt.Errorf("consent record is required")
	}
	// The partial unique index on (subject, consent_type) WHERE given AND
	// withdrawn_at IS NULL makes the effective-grant invariant a database
	// constraint; the conflict target below matches it.
	query := `
		INSERT INTO consent_records (id, subject, consent_type, given, method, context, granted_at, withdrawn_at, withdrawal_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject, consent_type) WHERE given AND withdrawn_at IS NULL DO NOTHING
		RETURNING id
	`
	var storedID string
	err := s.execer().QueryRowContext(ctx, query,
		consent.ID,
		consent.Subject,
		string(consent.Type),
		consent.Given,
		string(consent.Method),
		consent.Context,
		consent.GrantedAt,
		consent.WithdrawnAt,
		consent.WithdrawalReason,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveBySubjectAndType(ctx context.Context, subject string, consentType models.Type) (*models.Record, error) {
	query := `
		SELECT id, subject, consent_type, given, method, context, granted_at, withdrawn_at, withdrawal_reason
		FROM consent_records
		WHERE subject = $1 AND consent_type = $2 AND given AND withdrawn_at IS NULL
	`
	record, err := scanConsent(s.execer().QueryRowContext(ctx, query, subject, string(consentType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject string) ([]*models.Record, error) {
	query := `
		SELECT id, subject, consent_type, given, method, context, granted_at, withdrawn_at, withdrawal_reason
		FROM consent_records
		WHERE subject = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.execer().QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) WithdrawBySubjectAndType(ctx context.Context, subject string, consentType models.Type, withdrawnAt time.Time, reason string) (*models.Record, error) {
	query := `
		UPDATE consent_records
		SET withdrawn_at = $3, withdrawal_reason = $4
		WHERE subject = $1 AND consent_type = $2 AND given AND withdrawn_at IS NULL
		RETURNING id, subject, consent_type, given, method, context, granted_at, withdrawn_at, withdrawal_reason
	`
	record, err := scanConsent(s.execer().QueryRowContext(ctx, query, subject, string(consentType), withdrawnAt, reason))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("withdraw consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) DeleteBySubject(ctx context.Context, subject string) (int, error) {
	res, err := s.execer().ExecContext(ctx, `DELETE FROM consent_records WHERE subject = $1`, subject)
	if err != nil {
		return 0, fmt.Errorf("delete consents by subject: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete consents rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ReassignSubject(ctx context.Context, subject, replacement string) (int, error) {
	res, err := s.execer().ExecContext(ctx,
		`UPDATE consent_records SET subject = $2 WHERE subject = $1`, subject, replacement)
	if err != nil {
		return 0, fmt.Errorf("reassign consent subject: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign consent rows: %w", err)
	}
	return int(rows), nil
}

type consentRow interface {
	Scan(dest ...any) error
}

func scanConsent(row consentRow) (*models.Record, error) {
	var record models.Record
	var consentType, method string
	var withdrawnAt sql.NullTime
	var reason sql.NullString
	if err := row.Scan(
		&record.ID,
		&record.Subject,
		&consentType,
		&record.Given,
		&method,
		&record.Context,
		&record.GrantedAt,
		&withdrawnAt,
		&reason,
	); err != nil {
		return nil, err
	}
	record.Type = models.Type(consentType)
	record.Method = models.Method(method)
	if withdrawnAt.Valid {
		record.WithdrawnAt = &withdrawnAt.Time
	}
	if reason.Valid {
		record.WithdrawalReason = reason.String
	}
	return &record, nil
}
