package domain

import (
	"regexp"
	"strings"

	dErrors "signet/pkg/domain-errors"
)

// didPattern matches the iden3 DID method as used by this node:
// did:iden3:<network>:<identifier>.
var didPattern = regexp.MustCompile(`^did:iden3:(polygon|mumbai|main|test):[\w-]+$`)

// DID names an issuer or subject. The zero value is invalid; construct via
// ParseDID so the network segment is always present.
type DID struct {
	raw     string
	network string
	id      string
}

// ParseDID validates and decomposes a DID string.
func ParseDID(s string) (DID, error) {
	if !didPattern.MatchString(s) {
		return DID{}, dErrors.Newf(dErrors.CodeBadRequest, "malformed DID %q", s)
	}
	parts := strings.Split(s, ":")
	return DID{raw: s, network: parts[2], id: parts[3]}, nil
}

// MustParseDID is for tests and static configuration only.
func MustParseDID(s string) DID {
	did, err := ParseDID(s)
	if err != nil {
		panic(err)
	}
	return did
}

// IsValidDID reports whether s is a well-formed iden3 DID.
func IsValidDID(s string) bool { return didPattern.MatchString(s) }

func (d DID) String() string { return d.raw }

// NetworkID returns the network segment (polygon, mumbai, ...).
func (d DID) NetworkID() string { return d.network }

// Identifier returns the trailing identifier segment.
func (d DID) Identifier() string { return d.id }

// IsZero reports whether the DID was never parsed.
func (d DID) IsZero() bool { return d.raw == "" }
