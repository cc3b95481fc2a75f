// Package claims turns a credential request plus its schema into the
// canonical core claim committed to the identity state tree. Everything
// here is a pure function of its inputs: the same schema and request data
// always produce a byte-identical core claim, nonce included. Any
// nondeterminism in this package breaks provability.
package claims

import (
	"encoding/binary"
	"encoding/json"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"golang.org/x/crypto/sha3"

	"signet/internal/domain"
	"signet/internal/schema"
	dErrors "signet/pkg/domain-errors"
)

// Domain separators keep the index and value preimages disjoint.
var (
	indexPrefix = []byte("signet:claim:index:")
	valuePrefix = []byte("signet:claim:value:")
	noncePrefix = []byte("signet:claim:nonce:")
)

// ValidateRequest rejects requests that cannot become claims, before any
// network or chain call is attempted.
func ValidateRequest(req domain.CredentialRequest) error {
	if req.CredentialSchema == "" {
		return dErrors.New(dErrors.CodeClaim, "credential request lacks a schema reference")
	}
	if req.SubjectID() == "" {
		return dErrors.New(dErrors.CodeClaim, "credential request lacks a subject identifier")
	}
	return nil
}

// Build derives the core claim for a request.
func Build(issuerDID domain.DID, sch schema.Schema, req domain.CredentialRequest) (domain.CoreClaim, error) {
	if err := ValidateRequest(req); err != nil {
		return domain.CoreClaim{}, err
	}

	canonical, err := canonicalSubject(req.CredentialSubject)
	if err != nil {
		return domain.CoreClaim{}, err
	}
	subject := req.SubjectID()

	nonce := deriveNonce(issuerDID.String(), subject, sch.Hash, canonical)

	index, err := hashToField(indexPrefix, []byte(issuerDID.String()), []byte(subject), canonical)
	if err != nil {
		return domain.CoreClaim{}, err
	}
	value, err := hashToField(valuePrefix, []byte(sch.Hash), nonceBytes(nonce), canonical)
	if err != nil {
		return domain.CoreClaim{}, err
	}

	return domain.CoreClaim{
		IndexHash:       index,
		ValueHash:       value,
		RevocationNonce: nonce,
		SchemaHash:      sch.Hash,
	}, nil
}

// canonicalSubject serializes credentialSubject deterministically.
// encoding/json sorts map keys, which is the only ordering guarantee the
// preimage relies on.
func canonicalSubject(subject map[string]any) ([]byte, error) {
	out, err := json.Marshal(subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeClaim, "serialize credential subject")
	}
	return out, nil
}

// deriveNonce produces the per-claim revocation nonce from the claim
// preimage. Deterministic on purpose: re-issuing the identical request
// yields the identical claim rather than a second nonce.
func deriveNonce(issuer, subject, schemaHash string, canonical []byte) uint64 {
	h := sha3.NewLegacyKeccak256()
	h.Write(encodeParts(noncePrefix, []byte(issuer), []byte(subject), []byte(schemaHash), canonical))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// hashToField maps the encoded parts into the SMT's field via the
// poseidon sponge.
func hashToField(parts ...[]byte) (*big.Int, error) {
	v, err := poseidon.HashBytes(encodeParts(parts...))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeClaim, "hash claim preimage")
	}
	return v, nil
}

// encodeParts builds the commitment preimage. Each part is preceded by its
// big-endian length so field boundaries are unambiguous: shifting bytes
// between adjacent parts always changes the encoding.
func encodeParts(parts ...[]byte) []byte {
	var preimage []byte
	var length [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(length[:], uint64(len(p)))
		preimage = append(preimage, length[:]...)
		preimage = append(preimage, p...)
	}
	return preimage
}

func nonceBytes(nonce uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], nonce)
	return b[:]
}
