// Package registry holds the set of configured issuer identities. The
// registry is built once at startup and never mutates, so concurrent reads
// need no locking.
package registry

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"signet/internal/domain"
	"signet/internal/platform/config"
	dErrors "signet/pkg/domain-errors"
)

// Identity binds an issuer DID to its network and signing key. The key is
// parsed once at construction and is never logged or serialized.
type Identity struct {
	DID        domain.DID
	NetworkID  string
	privateKey *ecdsa.PrivateKey
}

// PrivateKey returns the signing key for transaction signing.
func (i Identity) PrivateKey() *ecdsa.PrivateKey { return i.privateKey }

// Registry resolves issuer DIDs to identities.
type Registry struct {
	order      []string
	identities map[string]Identity
}

// New parses the configured did=privateKeyHex pairs. Configuration order
// is preserved for List. Any invalid DID or key fails construction.
func New(keys []config.IssuerKey) (*Registry, error) {
	r := &Registry{identities: make(map[string]Identity, len(keys))}
	for _, k := range keys {
		did, err := domain.ParseDID(k.DID)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeConfig, "issuer %q is not a valid DID", k.DID)
		}
		priv, err := ethcrypto.HexToECDSA(k.PrivateKeyHex)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeConfig, "issuer %s: invalid private key", k.DID)
		}
		r.order = append(r.order, did.String())
		r.identities[did.String()] = Identity{
			DID:        did,
			NetworkID:  did.NetworkID(),
			privateKey: priv,
		}
	}
	return r, nil
}

// List returns all issuer DIDs in configuration order.
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns the identity for a DID.
func (r *Registry) Resolve(did string) (Identity, error) {
	id, ok := r.identities[did]
	if !ok {
		return Identity{}, dErrors.Newf(dErrors.CodeUnknownIssuer, "issuer %s is not configured", did)
	}
	return id, nil
}
