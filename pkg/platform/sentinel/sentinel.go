// Package sentinel defines storage-level sentinel errors shared by all store
// implementations so callers can branch with errors.Is regardless of backend.
package sentinel

import (
	dErrors "leadcrm/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

	// ErrConflict signals a uniqueness or admission violation detected by the store.
	ErrConflict = dErrors.New(dErrors.CodeConflict, "record conflict")
)
