package domain

import (
	"math/big"
	"time"
)

// Proof and credential-status type identifiers, fixed by the wire format.
const (
	ProofTypeIden3SparseMerkleTree   = "Iden3SparseMerkleTreeProof"
	CredentialStatusSparseMerkleTree = "SparseMerkleTreeProof"
)

// CoreClaim is the canonical index/value encoding of a credential request,
// the exact preimage of the on-chain commitment. Derived deterministically:
// identical inputs yield byte-identical CoreClaims, including the nonce.
type CoreClaim struct {
	IndexHash       *big.Int
	ValueHash       *big.Int
	RevocationNonce uint64
	SchemaHash      string
}

// PublishedState is one issuer's identity-state row on one network.
// Revision increases by exactly 1 per successful publish and never
// decreases; publishes for one issuer never interleave.
type PublishedState struct {
	IssuerDID string    `json:"issuerDid"`
	NetworkID string    `json:"networkId"`
	Root      string    `json:"root"`
	Revision  uint64    `json:"revision"`
	TxHash    string    `json:"txHash"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MerkleProof is a sparse-Merkle-tree inclusion proof binding a claim to
// the state root published immediately before the proof was generated.
type MerkleProof struct {
	Type            string   `json:"type"`
	Existence       bool     `json:"existence"`
	Root            string   `json:"root"`
	Siblings        []string `json:"siblings"`
	RevocationNonce uint64   `json:"revocationNonce"`
}

// CredentialSchemaRef is the schema pointer embedded in a credential.
type CredentialSchemaRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CredentialStatus points verifiers at the revocation key space.
type CredentialStatus struct {
	ID              string `json:"id,omitempty"`
	Type            string `json:"type"`
	RevocationNonce uint64 `json:"revocationNonce"`
}

// Credential is the persisted verifiable-credential document. Immutable
// once stored; revocation status is derived from chain state, never by
// editing the document.
type Credential struct {
	ID                string              `json:"id"`
	Issuer            string              `json:"issuer"`
	CredentialSubject map[string]any      `json:"credentialSubject"`
	CredentialSchema  CredentialSchemaRef `json:"credentialSchema"`
	CredentialStatus  *CredentialStatus   `json:"credentialStatus,omitempty"`
	Proof             []MerkleProof       `json:"proof"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// Subject returns the credentialSubject.id field, empty when absent.
func (c Credential) Subject() string {
	id, _ := c.CredentialSubject["id"].(string)
	return id
}

// RevocationRecord is created only by a successful on-chain revoke. A
// nonce, once revoked, is permanently revoked.
type RevocationRecord struct {
	IssuerDID string    `json:"issuerDid"`
	Nonce     uint64    `json:"nonce"`
	RevokedAt time.Time `json:"revokedAt"`
	TxHash    string    `json:"txHash"`
}

// CredentialRequest is the issuance input accepted over HTTP.
type CredentialRequest struct {
	CredentialSchema  string         `json:"credentialSchema"`
	Type              string         `json:"type,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject"`
	Expiration        *time.Time     `json:"expiration,omitempty"`
}

// SubjectID returns credentialSubject.id, empty when absent.
func (r CredentialRequest) SubjectID() string {
	id, _ := r.CredentialSubject["id"].(string)
	return id
}
