// Package identity tracks each issuer's identity state: the sparse Merkle
// claims tree, the published revision counter, and the used-nonce set. The
// state is the serialization point for everything that mutates an issuer's
// on-chain root.
package identity

import (
	"context"
	"math/big"
	"sync"
	"time"

	merkletree "github.com/iden3/go-merkletree-sql/v2"
	"github.com/iden3/go-merkletree-sql/v2/db/memory"

	"signet/internal/domain"
	dErrors "signet/pkg/domain-errors"
)

// claimsTreeDepth matches the depth used by the identity-state contracts.
const claimsTreeDepth = 40

// State mirrors one issuer's on-chain identity state. All mutating methods
// must be called under the manager's per-issuer exclusive section; read
// methods that only touch the terminal revoked set take their own lock.
type State struct {
	issuerDID string
	networkID string

	claims   *merkletree.MerkleTree
	nonces   map[uint64]struct{}
	revision uint64
	root     *merkletree.Hash
	txHash   string

	// revMu guards the terminal revoked set, which is read outside the
	// exclusive section by status queries.
	revMu   sync.RWMutex
	revoked map[uint64]struct{}
}

// Seed restores the durable part of an issuer's state after a restart:
// the published revision sequence keeps advancing from where it left off
// and nonces already bound to stored credentials stay unusable.
type Seed struct {
	Revision   uint64
	UsedNonces []uint64
}

func newState(ctx context.Context, issuerDID, networkID string, seed Seed) (*State, error) {
	mt, err := merkletree.NewMerkleTree(ctx, memory.NewMemoryStorage(), claimsTreeDepth)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create claims tree")
	}
	nonces := make(map[uint64]struct{}, len(seed.UsedNonces))
	for _, n := range seed.UsedNonces {
		nonces[n] = struct{}{}
	}
	return &State{
		issuerDID: issuerDID,
		networkID: networkID,
		claims:    mt,
		nonces:    nonces,
		revision:  seed.Revision,
		revoked:   make(map[uint64]struct{}),
		root:      mt.Root(),
	}, nil
}

// CheckClaim rejects a claim whose revocation nonce or index slot is
// already taken, before any chain call is attempted.
func (s *State) CheckClaim(ctx context.Context, claim domain.CoreClaim) error {
	if _, used := s.nonces[claim.RevocationNonce]; used {
		return dErrors.Newf(dErrors.CodeClaim, "revocation nonce %d already used by issuer %s", claim.RevocationNonce, s.issuerDID)
	}
	_, _, _, err := s.claims.Get(ctx, claim.IndexHash)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeClaim, "claim index already committed")
	case err == merkletree.ErrKeyNotFound:
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "probe claims tree")
	}
}

// CommitClaim applies a chain-confirmed claim to the local tree and
// advances the revision by exactly one. Call only after the transaction
// carrying this claim was confirmed.
func (s *State) CommitClaim(ctx context.Context, claim domain.CoreClaim, txHash string) (domain.PublishedState, error) {
	if err := s.claims.Add(ctx, claim.IndexHash, claim.ValueHash); err != nil {
		if err == merkletree.ErrEntryIndexAlreadyExists {
			return domain.PublishedState{}, dErrors.New(dErrors.CodeClaim, "claim index already committed")
		}
		return domain.PublishedState{}, dErrors.Wrap(err, dErrors.CodeInternal, "add claim to tree")
	}
	s.nonces[claim.RevocationNonce] = struct{}{}
	s.revision++
	s.root = s.claims.Root()
	s.txHash = txHash
	return s.snapshot(), nil
}

// Prove generates the inclusion proof for a claim against the root of the
// immediately preceding publish. A root mismatch means another publish
// interleaved, which the per-issuer serialization is supposed to make
// impossible; it is surfaced as a chain error, never proven silently.
func (s *State) Prove(ctx context.Context, claim domain.CoreClaim, published domain.PublishedState) (domain.MerkleProof, error) {
	if published.Root != s.root.Hex() {
		return domain.MerkleProof{}, dErrors.New(dErrors.CodeChainRevert, "state root advanced before proof generation").
			WithField("expected_root", published.Root).
			WithField("current_root", s.root.Hex())
	}
	proof, _, err := s.claims.GenerateProof(ctx, claim.IndexHash, s.root)
	if err != nil {
		return domain.MerkleProof{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate inclusion proof")
	}
	if !proof.Existence {
		return domain.MerkleProof{}, dErrors.New(dErrors.CodeInternal, "committed claim missing from tree")
	}
	siblings := make([]string, 0, len(proof.AllSiblings()))
	for _, sib := range proof.AllSiblings() {
		siblings = append(siblings, sib.Hex())
	}
	return domain.MerkleProof{
		Type:            domain.ProofTypeIden3SparseMerkleTree,
		Existence:       true,
		Root:            s.root.Hex(),
		Siblings:        siblings,
		RevocationNonce: claim.RevocationNonce,
	}, nil
}

// MarkRevoked records a chain-confirmed revocation. One-way: there is no
// un-revoke.
func (s *State) MarkRevoked(nonce uint64) {
	s.revMu.Lock()
	defer s.revMu.Unlock()
	s.revoked[nonce] = struct{}{}
}

// KnownRevoked reports whether this node has already observed a confirmed
// revocation for the nonce. A false answer says nothing about chain state.
func (s *State) KnownRevoked(nonce uint64) bool {
	s.revMu.RLock()
	defer s.revMu.RUnlock()
	_, ok := s.revoked[nonce]
	return ok
}

// Revision returns the current published revision.
func (s *State) Revision() uint64 { return s.revision }

// Root returns the current root in hex form.
func (s *State) Root() string { return s.root.Hex() }

func (s *State) snapshot() domain.PublishedState {
	return domain.PublishedState{
		IssuerDID: s.issuerDID,
		NetworkID: s.networkID,
		Root:      s.root.Hex(),
		Revision:  s.revision,
		TxHash:    s.txHash,
		UpdatedAt: time.Now().UTC(),
	}
}

// ClaimTreeEntry is a convenience for tests inspecting tree membership.
func (s *State) ClaimTreeEntry(ctx context.Context, index *big.Int) (*big.Int, error) {
	_, v, _, err := s.claims.Get(ctx, index)
	return v, err
}
