package deletion

import (
	"context"
	"database/sql"
	"fmt"

	consentstore "leadcrm/internal/consent/store"
	subjectstore "leadcrm/internal/subject/store"
)

// PostgresUnitOfWork runs strategies inside one database transaction. Subject
// rows are locked FOR UPDATE before the strategy runs, so a concurrent export
// reading the same subject sees either the pre- or post-deletion state, never
// a torn one.
type PostgresUnitOfWork struct {
	db *sql.DB
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

func (u *PostgresUnitOfWork) RunInTx(ctx context.Context, subject string, fn func(ctx context.Context, stores TxStores) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin deletion tx: %w", err)
	}

	if err := lockSubjectRows(ctx, tx, subject); err != nil {
		tx.Rollback() //nolint:errcheck // rollback error is secondary
		return err
	}

	stores := TxStores{
		Subjects: subjectstore.NewPostgresTx(tx),
		Consents: consentstore.NewPostgresTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback deletion tx after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deletion tx: %w", err)
	}
	return nil
}

func lockSubjectRows(ctx context.Context, tx *sql.Tx, subject string) error {
	if _, err := tx.ExecContext(ctx, `SELECT id FROM profiles WHERE email = $1 FOR UPDATE`, subject); err != nil {
		return fmt.Errorf("lock profile rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT id FROM leads WHERE email = $1 FOR UPDATE`, subject); err != nil {
		return fmt.Errorf("lock lead rows: %w", err)
	}
	return nil
}
