package audit

import "time"

// Actions recorded by the issuer pipelines.
const (
	ActionCredentialIssued  = "credential_issued"
	ActionCredentialRevoked = "credential_revoked"
)

// Event is emitted from the issuance and revocation pipelines. Keep it
// transport-agnostic so sinks can fan out. Never carries key material.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       string    `json:"action"`
	IssuerDID    string    `json:"issuerDid"`
	Subject      string    `json:"subject,omitempty"`
	CredentialID string    `json:"credentialId,omitempty"`
	Nonce        uint64    `json:"nonce,omitempty"`
	TxHash       string    `json:"txHash,omitempty"`
	NetworkID    string    `json:"networkId,omitempty"`
}
