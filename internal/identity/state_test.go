package identity

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
	dErrors "signet/pkg/domain-errors"
)

func testClaim(seed int64) domain.CoreClaim {
	return domain.CoreClaim{
		IndexHash:       big.NewInt(1000 + seed),
		ValueHash:       big.NewInt(2000 + seed),
		RevocationNonce: uint64(42 + seed),
		SchemaHash:      "deadbeef",
	}
}

func TestCommitClaimAdvancesRevisionByOne(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{})
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		claim := testClaim(i)
		require.NoError(t, st.CheckClaim(ctx, claim))
		published, err := st.CommitClaim(ctx, claim, fmt.Sprintf("0x%02x", i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), published.Revision)
		assert.Equal(t, st.Root(), published.Root)
		assert.Equal(t, "polygon", published.NetworkID)
	}
}

func TestCheckClaimRejectsNonceReuse(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{})
	require.NoError(t, err)

	claim := testClaim(1)
	_, err = st.CommitClaim(ctx, claim, "0x01")
	require.NoError(t, err)

	dup := testClaim(99)
	dup.RevocationNonce = claim.RevocationNonce
	err = st.CheckClaim(ctx, dup)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaim))

	sameIndex := testClaim(98)
	sameIndex.IndexHash = claim.IndexHash
	err = st.CheckClaim(ctx, sameIndex)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaim))
}

func TestProveBindsToFreshRoot(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{})
	require.NoError(t, err)

	claim := testClaim(1)
	published, err := st.CommitClaim(ctx, claim, "0x01")
	require.NoError(t, err)

	proof, err := st.Prove(ctx, claim, published)
	require.NoError(t, err)
	assert.Equal(t, domain.ProofTypeIden3SparseMerkleTree, proof.Type)
	assert.True(t, proof.Existence)
	assert.Equal(t, published.Root, proof.Root)
	assert.Equal(t, claim.RevocationNonce, proof.RevocationNonce)
}

func TestProveRejectsStaleRoot(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{})
	require.NoError(t, err)

	first := testClaim(1)
	stale, err := st.CommitClaim(ctx, first, "0x01")
	require.NoError(t, err)

	// A second publish supersedes the first root.
	_, err = st.CommitClaim(ctx, testClaim(2), "0x02")
	require.NoError(t, err)

	_, err = st.Prove(ctx, first, stale)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainRevert))
}

func TestSeededStateContinuesRevisionSequence(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{
		Revision:   7,
		UsedNonces: []uint64{43},
	})
	require.NoError(t, err)

	// The next publish continues the durable sequence instead of
	// restarting at 1.
	published, err := st.CommitClaim(ctx, testClaim(2), "0x08")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), published.Revision)

	// A nonce bound to a credential issued before the restart stays
	// unusable.
	dup := testClaim(5)
	dup.RevocationNonce = 43
	err = st.CheckClaim(ctx, dup)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaim))
}

func TestManagerSeedsStateOnFirstUse(t *testing.T) {
	ctx := context.Background()
	m := NewManager(WithSeed(func(_ context.Context, issuerDID, networkID string) (Seed, error) {
		assert.Equal(t, "did:iden3:polygon:Ax1", issuerDID)
		assert.Equal(t, "polygon", networkID)
		return Seed{Revision: 3}, nil
	}))

	err := m.Exclusive(ctx, "did:iden3:polygon:Ax1", "polygon", func(st *State) error {
		assert.Equal(t, uint64(3), st.Revision())
		return nil
	})
	require.NoError(t, err)
}

func TestRevokedSetIsTerminal(t *testing.T) {
	ctx := context.Background()
	st, err := newState(ctx, "did:iden3:polygon:Ax1", "polygon", Seed{})
	require.NoError(t, err)

	assert.False(t, st.KnownRevoked(42))
	st.MarkRevoked(42)
	for range 3 {
		assert.True(t, st.KnownRevoked(42))
	}
}

func TestManagerSerializesPerIssuer(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	const publishers = 8
	var wg sync.WaitGroup
	revisions := make(chan uint64, publishers)
	for i := range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Exclusive(ctx, "did:iden3:polygon:Ax1", "polygon", func(st *State) error {
				claim := testClaim(int64(i))
				if err := st.CheckClaim(ctx, claim); err != nil {
					return err
				}
				published, err := st.CommitClaim(ctx, claim, "0x0")
				if err != nil {
					return err
				}
				revisions <- published.Revision
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(revisions)

	seen := make(map[uint64]bool)
	for rev := range revisions {
		assert.False(t, seen[rev], "revision %d observed twice", rev)
		seen[rev] = true
	}
	for rev := uint64(1); rev <= publishers; rev++ {
		assert.True(t, seen[rev], "revision %d missing", rev)
	}
}

func TestManagerIsolatesIssuers(t *testing.T) {
	ctx := context.Background()
	m := NewManager()

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Exclusive(ctx, "did:iden3:polygon:Ax1", "polygon", func(*State) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	// Issuer B must proceed while issuer A holds its section.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Exclusive(ctx, "did:iden3:mumbai:Bx2", "mumbai", func(*State) error { return nil })
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish for issuer B blocked behind issuer A")
	}
	close(release)
}

func TestExclusiveHonorsCancellation(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Exclusive(ctx, "did:iden3:polygon:Ax1", "polygon", func(*State) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelDeadline()
	err := m.Exclusive(deadlineCtx, "did:iden3:polygon:Ax1", "polygon", func(*State) error { return nil })
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeChainTimeout))

	// A plain cancellation is not a confirmation timeout and must not be
	// reported as one.
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()
	err = m.Exclusive(cancelCtx, "did:iden3:polygon:Ax1", "polygon", func(*State) error { return nil })
	require.Error(t, err)
	assert.False(t, dErrors.HasCode(err, dErrors.CodeChainTimeout))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	// The section is not permanently stuck: after release the issuer is
	// usable again.
	close(release)
	require.NoError(t, m.Exclusive(ctx, "did:iden3:polygon:Ax1", "polygon", func(*State) error { return nil }))
}
