package audit

import (
	"context"
)

// Store persists audit events. The trail is append-only: events are never
// updated or deleted by this subsystem.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
