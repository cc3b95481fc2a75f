// Package credential persists issued credentials, published identity
// states and revocation records. Stores are interface-driven so the
// in-memory and Postgres implementations stay swappable without touching
// pipeline code. Stores perform no cryptographic validation; validity is
// guaranteed by the pipeline that produced the document.
package credential

import (
	"context"

	"signet/internal/domain"
)

// Store is the durable keyed space the issuance pipeline writes into.
type Store interface {
	// Create persists a credential and returns its id. Write failures are
	// surfaced, not retried; retry policy belongs to the caller.
	Create(ctx context.Context, cred domain.Credential) (string, error)
	// GetByID returns one credential; sentinel.ErrNotFound when absent.
	GetByID(ctx context.Context, issuer, credentialID string) (domain.Credential, error)
	// GetByUser lists a subject's credentials from one issuer, optionally
	// filtered by schema type. Order is not guaranteed; empty slice when
	// none.
	GetByUser(ctx context.Context, issuer, subject, schemaType string) ([]domain.Credential, error)

	// SaveState upserts the latest published state per issuer and network.
	// The revision is monotonic: a write that does not advance the stored
	// revision fails with sentinel.ErrStaleWrite instead of rolling the
	// row backwards.
	SaveState(ctx context.Context, state domain.PublishedState) error
	// LatestState returns the newest state row; sentinel.ErrNotFound when
	// the issuer has never published.
	LatestState(ctx context.Context, issuer, networkID string) (domain.PublishedState, error)
	// UsedNonces lists the revocation nonces bound to this issuer's stored
	// credentials, so a restarted node can keep rejecting collisions.
	UsedNonces(ctx context.Context, issuer string) ([]uint64, error)

	// SaveRevocation records a confirmed on-chain revocation.
	// sentinel.ErrAlreadyExists when the nonce is already recorded.
	SaveRevocation(ctx context.Context, rec domain.RevocationRecord) error
	// GetRevocation returns a revocation record; sentinel.ErrNotFound when
	// the nonce was never revoked through this node.
	GetRevocation(ctx context.Context, issuer string, nonce uint64) (domain.RevocationRecord, error)
}
