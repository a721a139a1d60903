// Package anonymize rewrites a subject's identifying fields in place using a
// declarative per-table rule set. Rules never touch primary keys, foreign
// keys, or timestamps, so row counts and references survive while the
// identifying content does not.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"leadcrm/internal/subject/models"
)

// RuleKind enumerates the supported field replacement rules.
type RuleKind int

const (
	// RuleClear replaces the field with its empty value. The subject tables
	// declare these columns NOT NULL with empty-string defaults, so clearing
	// writes "" rather than SQL NULL.
	RuleClear RuleKind = iota
	// RuleConstant replaces the field with a fixed placeholder.
	RuleConstant
	// RuleDerived replaces the field with a deterministic, non-reversible
	// synthetic value unique to the subject.
	RuleDerived
)

// Rule is one field replacement instruction.
type Rule struct {
	Kind     RuleKind
	Constant string
}

func Clear() Rule            { return Rule{Kind: RuleClear} }
func Constant(v string) Rule { return Rule{Kind: RuleConstant, Constant: v} }
func Derived() Rule          { return Rule{Kind: RuleDerived} }

const placeholderName = "Anonymized User"

// DefaultRules is the rule table applied by deletion requests with the
// anonymize strategy. Every column here must be listed in
// models.MutableColumns; Engine.Values enforces that at apply time.
var DefaultRules = map[models.Table]map[string]Rule{
	models.TableProfiles: {
		"email":      Derived(),
		"first_name": Constant(placeholderName),
		"last_name":  Constant(placeholderName),
		"phone":      Clear(),
		"company":    Clear(),
	},
	models.TableLeads: {
		"email":      Derived(),
		"first_name": Constant(placeholderName),
		"last_name":  Constant(placeholderName),
		"phone":      Clear(),
		"company":    Clear(),
		"notes":      Clear(),
	},
	models.TableTasks: {
		"description": Clear(),
	},
	models.TableActivities: {
		"summary": Clear(),
	},
	models.TableCommunications: {
		"subject": Clear(),
		"body":    Clear(),
	},
}

// Engine resolves rule tables into concrete column values per subject.
type Engine struct {
	rules map[models.Table]map[string]Rule
}

func NewEngine() *Engine {
	return &Engine{rules: DefaultRules}
}

// NewEngineWithRules constructs an engine over a custom rule table. Test hook.
func NewEngineWithRules(rules map[models.Table]map[string]Rule) *Engine {
	return &Engine{rules: rules}
}

// SyntheticEmail derives the replacement address for a subject. Hashing makes
// it non-reversible; hashing the subject makes it deterministic and unique
// per subject, so anonymization introduces no new collisions.
func (e *Engine) SyntheticEmail(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return fmt.Sprintf("anonymized-%s@redacted.invalid", hex.EncodeToString(sum[:8]))
}

// Values resolves the rule table for one table into a column value map
// suitable for a bulk field update. Returns an error if a rule targets a
// column that is not mutable, which would otherwise silently corrupt keys.
func (e *Engine) Values(table models.Table, subject string) (map[string]any, error) {
	rules, ok := e.rules[table]
	if !ok {
		return nil, nil
	}
	values := make(map[string]any, len(rules))
	for column, rule := range rules {
		if !models.IsMutableColumn(table, column) {
			return nil, fmt.Errorf("anonymization rule targets immutable column %q on table %q", column, table)
		}
		switch rule.Kind {
		case RuleClear:
			values[column] = ""
		case RuleConstant:
			values[column] = rule.Constant
		case RuleDerived:
			values[column] = e.SyntheticEmail(subject)
		default:
			return nil, fmt.Errorf("unknown rule kind %d for column %q", rule.Kind, column)
		}
	}
	return values, nil
}

// Tables returns the tables the engine has rules for.
func (e *Engine) Tables() []models.Table {
	tables := make([]models.Table, 0, len(e.rules))
	for t := range e.rules {
		tables = append(tables, t)
	}
	return tables
}
