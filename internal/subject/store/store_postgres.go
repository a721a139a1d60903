package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadcrm/internal/subject/models"
	"leadcrm/pkg/platform/sentinel"
)

// PostgresStore persists subject CRM rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed subject store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed subject store bound to a transaction.
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

func (s *PostgresStore) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `
		SELECT id, email, first_name, last_name, phone, company, created_at
		FROM profiles
		WHERE email = $1
	`
	var p models.Profile
	err := s.execer().QueryRowContext(ctx, query, email).Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone, &p.Company, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) FindLeadsByEmail(ctx context.Context, email string) ([]*models.Lead, error) {
	query := `
		SELECT id, email, first_name, last_name, phone, company, status, source, notes,
		       retention_hold, retain_until, created_at
		FROM leads
		WHERE email = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.execer().QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		var l models.Lead
		var retainUntil sql.NullTime
		if err := rows.Scan(
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Phone, &l.Company,
			&l.Status, &l.Source, &l.Notes, &l.RetentionHold, &retainUntil, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		if retainUntil.Valid {
			l.RetainUntil = &retainUntil.Time
		}
		leads = append(leads, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) FindTasksByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Task, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, lead_id, title, description, status, due_at, created_at
		FROM tasks
		WHERE lead_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.execer().QueryContext(ctx, query, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var dueAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.LeadID, &t.Title, &t.Description, &t.Status, &dueAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if dueAt.Valid {
			t.DueAt = &dueAt.Time
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) FindActivitiesByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Activity, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, lead_id, kind, summary, occurred_at
		FROM activities
		WHERE lead_id = ANY($1)
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.execer().QueryContext(ctx, query, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Kind, &a.Summary, &a.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return activities, nil
}

func (s *PostgresStore) FindCommunicationsByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Communication, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, lead_id, channel, direction, subject, body, sent_at
		FROM communications
		WHERE lead_id = ANY($1)
		ORDER BY sent_at ASC, id ASC
	`
	rows, err := s.execer().QueryContext(ctx, query, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var comms []*models.Communication
	for rows.Next() {
		var c models.Communication
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Channel, &c.Direction, &c.Subject, &c.Body, &c.SentAt); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		comms = append(comms, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communications: %w", err)
	}
	return comms, nil
}

func (s *PostgresStore) DeleteActivities(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "activities", ids)
}

func (s *PostgresStore) DeleteTasks(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "tasks", ids)
}

func (s *PostgresStore) DeleteCommunications(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "communications", ids)
}

func (s *PostgresStore) DeleteLeads(ctx context.Context, ids []string) (int, error) {
	return s.deleteByIDs(ctx, "leads", ids)
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.execer().ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) deleteByIDs(ctx context.Context, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// table is always one of our fixed schema names, never caller input
	res, err := s.execer().ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table), ids)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s rows: %w", table, err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ApplyFieldValues(ctx context.Context, table models.Table, ids []string, values map[string]any) (int, error) {
	if len(ids) == 0 || len(values) == 0 {
		return 0, nil
	}
	if _, ok := models.MutableColumns[table]; !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}

	// Deterministic column order keeps generated SQL stable for logs and tests.
	columns := make([]string, 0, len(values))
	for column := range values {
		if !models.IsMutableColumn(table, column) {
			return 0, fmt.Errorf("column %q is not mutable on table %q", column, table)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns))
	args := []any{ids}
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+2))
		args = append(args, values[column])
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ANY($1)`, table, strings.Join(assignments, ", "))
	res, err := s.execer().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("apply field values on %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("apply field values rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) HoldLeads(ctx context.Context, ids []string, until time.Time, note string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE leads
		SET retention_hold = TRUE,
		    retain_until = $2,
		    notes = CASE WHEN notes = '' THEN $3 ELSE notes || E'\n' || $3 END
		WHERE id = ANY($1)
	`
	res, err := s.execer().ExecContext(ctx, query, ids, until, note)
	if err != nil {
		return 0, fmt.Errorf("hold leads: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("hold leads rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE leads
		SET retention_hold = FALSE, retain_until = NULL
		WHERE retention_hold AND retain_until < $1
	`
	res, err := s.execer().ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release expired holds rows: %w", err)
	}
	return int(rows), nil
}
