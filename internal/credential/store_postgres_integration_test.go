//go:build integration

package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signet/internal/credential"
	"signet/internal/domain"
	"signet/pkg/platform/sentinel"
	"signet/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *credential.PostgresStore
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pool := containers.StartPostgres(t)
	s := &PostgresStoreSuite{store: credential.NewPostgres(pool), ctx: context.Background()}
	if err := s.store.Migrate(s.ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) testCredential() domain.Credential {
	return domain.Credential{
		Issuer: "did:iden3:polygon:Ax1",
		CredentialSubject: map[string]any{
			"id":  "did:iden3:polygon:Bx2",
			"age": float64(30),
		},
		CredentialSchema: domain.CredentialSchemaRef{
			ID:   "ipfs://QmSchema",
			Type: "JsonSchemaValidator2018",
		},
		Proof: []domain.MerkleProof{{
			Type:            domain.ProofTypeIden3SparseMerkleTree,
			Existence:       true,
			Root:            "abc123",
			Siblings:        []string{},
			RevocationNonce: 42,
		}},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *PostgresStoreSuite) TestCredentialRoundTrip() {
	cred := s.testCredential()
	id, err := s.store.Create(s.ctx, cred)
	s.Require().NoError(err)

	got, err := s.store.GetByID(s.ctx, cred.Issuer, id)
	s.Require().NoError(err)
	cred.ID = id
	s.Equal(cred, got)

	list, err := s.store.GetByUser(s.ctx, cred.Issuer, "did:iden3:polygon:Bx2", "JsonSchemaValidator2018")
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.store.GetByID(s.ctx, cred.Issuer, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestStateUpsert() {
	issuer := "did:iden3:polygon:StateIssuer"
	for rev := uint64(1); rev <= 3; rev++ {
		err := s.store.SaveState(s.ctx, domain.PublishedState{
			IssuerDID: issuer,
			NetworkID: "polygon",
			Root:      "root",
			Revision:  rev,
			TxHash:    "0x01",
			UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
		})
		s.Require().NoError(err)
	}
	state, err := s.store.LatestState(s.ctx, issuer, "polygon")
	s.Require().NoError(err)
	s.Equal(uint64(3), state.Revision)
}

func (s *PostgresStoreSuite) TestStateUpsertRejectsStaleRevision() {
	issuer := "did:iden3:polygon:StaleIssuer"
	state := domain.PublishedState{
		IssuerDID: issuer,
		NetworkID: "polygon",
		Root:      "root-2",
		Revision:  2,
		TxHash:    "0x01",
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.SaveState(s.ctx, state))

	state.Revision = 1
	s.Require().ErrorIs(s.store.SaveState(s.ctx, state), sentinel.ErrStaleWrite)
	state.Revision = 2
	s.Require().ErrorIs(s.store.SaveState(s.ctx, state), sentinel.ErrStaleWrite)

	got, err := s.store.LatestState(s.ctx, issuer, "polygon")
	s.Require().NoError(err)
	s.Equal(uint64(2), got.Revision)
	s.Equal("root-2", got.Root)
}

func (s *PostgresStoreSuite) TestUsedNonces() {
	issuer := "did:iden3:polygon:NonceIssuer"
	for _, nonce := range []uint64{7, 18446744073709551615} {
		cred := s.testCredential()
		cred.Issuer = issuer
		cred.CredentialStatus = &domain.CredentialStatus{
			Type:            domain.CredentialStatusSparseMerkleTree,
			RevocationNonce: nonce,
		}
		_, err := s.store.Create(s.ctx, cred)
		s.Require().NoError(err)
	}

	nonces, err := s.store.UsedNonces(s.ctx, issuer)
	s.Require().NoError(err)
	s.ElementsMatch([]uint64{7, 18446744073709551615}, nonces)
}

func (s *PostgresStoreSuite) TestRevocationUniqueness() {
	rec := domain.RevocationRecord{
		IssuerDID: "did:iden3:polygon:RevIssuer",
		Nonce:     42,
		TxHash:    "0x02",
		RevokedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.SaveRevocation(s.ctx, rec))
	s.Require().ErrorIs(s.store.SaveRevocation(s.ctx, rec), sentinel.ErrAlreadyExists)

	got, err := s.store.GetRevocation(s.ctx, rec.IssuerDID, rec.Nonce)
	s.Require().NoError(err)
	s.Equal(rec, got)
}
