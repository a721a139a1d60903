package deletion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadcrm/internal/lifecycle/anonymize"
	lifecyclemodels "leadcrm/internal/lifecycle/models"
	"leadcrm/internal/subject/models"
	dErrors "leadcrm/pkg/domain-errors"
)

// TableOrder is the static child-before-parent order every strategy walks.
// It encodes the schema's foreign-key graph in one place: adding a dependent
// table is a change here, not in every strategy.
var TableOrder = []models.Table{
	models.TableActivities,
	models.TableTasks,
	models.TableCommunications,
	models.TableLeads,
	models.TableProfiles,
	models.TableConsents,
}

// RecordResolver scopes a strategy to a subject's record ids.
type RecordResolver interface {
	RelatedRecordIDs(ctx context.Context, email string) (models.RecordSet, error)
}

// Outcome summarizes what a strategy did, for audit detail and for the
// lifecycle request row.
type Outcome struct {
	Strategy       lifecyclemodels.Strategy
	RowsDeleted    int
	RowsAnonymized int
	LeadsHeld      int
	RetainUntil    *time.Time
}

// Coordinator executes one of the three deletion strategies atomically.
type Coordinator struct {
	resolver  RecordResolver
	uow       UnitOfWork
	engine    *anonymize.Engine
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewCoordinator(resolver RecordResolver, uow UnitOfWork, engine *anonymize.Engine, retention time.Duration, log *slog.Logger) *Coordinator {
	return &Coordinator{
		resolver:  resolver,
		uow:       uow,
		engine:    engine,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the retention clock. Test hook.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Execute runs the given strategy for the subject as one atomic unit.
// Failures from the stores propagate unchanged; partial application is never
// observable outside the unit of work.
func (c *Coordinator) Execute(ctx context.Context, subject string, strategy lifecyclemodels.Strategy) (*Outcome, error) {
	set, err := c.resolver.RelatedRecordIDs(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("resolve subject records: %w", err)
	}

	outcome := &Outcome{Strategy: strategy}
	switch strategy {
	case lifecyclemodels.StrategyFull:
		err = c.uow.RunInTx(ctx, subject, func(ctx context.Context, stores TxStores) error {
			return c.deleteAll(ctx, stores, subject, set, outcome)
		})
	case lifecyclemodels.StrategyAnonymize:
		err = c.uow.RunInTx(ctx, subject, func(ctx context.Context, stores TxStores) error {
			return c.anonymizeAll(ctx, stores, subject, set, outcome)
		})
	case lifecyclemodels.StrategyRetain:
		err = c.uow.RunInTx(ctx, subject, func(ctx context.Context, stores TxStores) error {
			return c.hold(ctx, stores, set, outcome)
		})
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown deletion strategy "+string(strategy))
	}
	if err != nil {
		return nil, err
	}

	c.log.Info("deletion strategy executed",
		"subject", subject,
		"strategy", string(strategy),
		"deleted", outcome.RowsDeleted,
		"anonymized", outcome.RowsAnonymized,
		"held", outcome.LeadsHeld,
	)
	return outcome, nil
}

func (c *Coordinator) deleteAll(ctx context.Context, stores TxStores, subject string, set models.RecordSet, outcome *Outcome) error {
	for _, table := range TableOrder {
		ids := set.IDs(table)
		var (
			count int
			err   error
		)
		switch table {
		case models.TableActivities:
			count, err = stores.Subjects.DeleteActivities(ctx, ids)
		case models.TableTasks:
			count, err = stores.Subjects.DeleteTasks(ctx, ids)
		case models.TableCommunications:
			count, err = stores.Subjects.DeleteCommunications(ctx, ids)
		case models.TableLeads:
			count, err = stores.Subjects.DeleteLeads(ctx, ids)
		case models.TableProfiles:
			for _, id := range ids {
				if err = stores.Subjects.DeleteProfile(ctx, id); err != nil {
					break
				}
				count++
			}
		case models.TableConsents:
			count, err = stores.Consents.DeleteBySubject(ctx, subject)
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		outcome.RowsDeleted += count
	}
	return nil
}

func (c *Coordinator) anonymizeAll(ctx context.Context, stores TxStores, subject string, set models.RecordSet, outcome *Outcome) error {
	for _, table := range TableOrder {
		if table == models.TableConsents {
			count, err := stores.Consents.ReassignSubject(ctx, subject, c.engine.SyntheticEmail(subject))
			if err != nil {
				return fmt.Errorf("anonymize %s: %w", table, err)
			}
			outcome.RowsAnonymized += count
			continue
		}

		ids := set.IDs(table)
		if len(ids) == 0 {
			continue
		}
		values, err := c.engine.Values(table, subject)
		if err != nil {
			return fmt.Errorf("resolve rules for %s: %w", table, err)
		}
		if len(values) == 0 {
			continue
		}
		count, err := stores.Subjects.ApplyFieldValues(ctx, table, ids, values)
		if err != nil {
			return fmt.Errorf("anonymize %s: %w", table, err)
		}
		outcome.RowsAnonymized += count
	}
	return nil
}

func (c *Coordinator) hold(ctx context.Context, stores TxStores, set models.RecordSet, outcome *Outcome) error {
	until := c.now().Add(c.retention)
	note := fmt.Sprintf("Deletion deferred by retention hold until %s", until.Format(time.RFC3339))

	count, err := stores.Subjects.HoldLeads(ctx, set.IDs(models.TableLeads), until, note)
	if err != nil {
		return fmt.Errorf("hold leads: %w", err)
	}
	outcome.LeadsHeld = count
	outcome.RetainUntil = &until
	return nil
}
