// Package artifact stores export documents and hands out expiring download
// links. Payloads are opaque bytes; expiry is enforced both at the store (the
// artifact disappears) and at the link (the signature stops validating).
package artifact

import "time"

// Artifact is a stored export document awaiting download.
type Artifact struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	Subject     string    `json:"subject"`
	ContentType string    `json:"content_type"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the artifact is past its expiry at the given time.
func (a *Artifact) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
