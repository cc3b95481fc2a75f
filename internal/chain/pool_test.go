package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signet/pkg/domain-errors"
)

type stubBackend struct{ networkID string }

func (s *stubBackend) SubmitClaim(context.Context, *ecdsa.PrivateKey, *big.Int, *big.Int) (string, error) {
	return "0x0", nil
}
func (s *stubBackend) SubmitRevocation(context.Context, *ecdsa.PrivateKey, uint64) (string, error) {
	return "0x0", nil
}
func (s *stubBackend) IsRevoked(context.Context, uint64) (bool, error) { return false, nil }

func testPool(dials *atomic.Int32) *Pool {
	rpc := map[string]string{"polygon": "https://rpc.example.org"}
	contracts := map[string]string{"polygon": "0x134B1BE34911E39A8397ec6289782989729807a4"}
	return NewPoolWithDialer(rpc, contracts, time.Minute,
		func(ctx context.Context, networkID, rpcURL, contractAddr string, confirmTimeout time.Duration) (Backend, error) {
			dials.Add(1)
			time.Sleep(5 * time.Millisecond) // widen the construction race window
			return &stubBackend{networkID: networkID}, nil
		})
}

func TestClientUnsupportedNetwork(t *testing.T) {
	var dials atomic.Int32
	pool := testPool(&dials)

	_, err := pool.Client(context.Background(), "solana")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedNetwork))
	assert.Zero(t, dials.Load())
}

func TestClientConstructsOncePerNetwork(t *testing.T) {
	var dials atomic.Int32
	pool := testPool(&dials)

	first, err := pool.Client(context.Background(), "polygon")
	require.NoError(t, err)
	second, err := pool.Client(context.Background(), "polygon")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), dials.Load())
}

func TestClientConcurrentFirstUse(t *testing.T) {
	var dials atomic.Int32
	pool := testPool(&dials)

	const goroutines = 16
	results := make([]Backend, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := pool.Client(context.Background(), "polygon")
			require.NoError(t, err)
			results[i] = client
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load(), "duplicate construction under concurrent first use")
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
