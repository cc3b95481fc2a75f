package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into coded domain
// errors without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrAlreadyExists: unique key (credential id, claim index) already taken
// - ErrRevoked: the nonce is already revoked on chain or locally
// - ErrStaleWrite: the write would move a monotonic record backwards
// - ErrUnavailable: backing service temporarily unreachable
//
// For input validation use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRevoked       = errors.New("revoked")
	ErrStaleWrite    = errors.New("stale write")
	ErrUnavailable   = errors.New("unavailable")
)
