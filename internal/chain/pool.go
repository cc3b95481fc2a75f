package chain

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	dErrors "signet/pkg/domain-errors"
)

// DialFunc constructs a backend for one network. Swappable in tests.
type DialFunc func(ctx context.Context, networkID, rpcURL, contractAddr string, confirmTimeout time.Duration) (Backend, error)

// Pool hands out one shared Backend per network. Construction is lazy and
// deduplicated so concurrent first use builds a single client; after that
// clients are read-mostly and safe for unbounded concurrent use.
type Pool struct {
	rpcEndpoints      map[string]string
	contractAddresses map[string]string
	confirmTimeout    time.Duration
	dial              DialFunc

	mu      sync.RWMutex
	clients map[string]Backend
	group   singleflight.Group
}

// NewPool builds a pool over the configured network maps.
func NewPool(rpcEndpoints, contractAddresses map[string]string, confirmTimeout time.Duration) *Pool {
	return &Pool{
		rpcEndpoints:      rpcEndpoints,
		contractAddresses: contractAddresses,
		confirmTimeout:    confirmTimeout,
		dial:              dialEthereum,
		clients:           make(map[string]Backend),
	}
}

// NewPoolWithDialer is NewPool with an injected constructor, for tests.
func NewPoolWithDialer(rpcEndpoints, contractAddresses map[string]string, confirmTimeout time.Duration, dial DialFunc) *Pool {
	p := NewPool(rpcEndpoints, contractAddresses, confirmTimeout)
	p.dial = dial
	return p
}

// Client returns the backend for a network, constructing it on first use.
func (p *Pool) Client(ctx context.Context, networkID string) (Backend, error) {
	p.mu.RLock()
	client, ok := p.clients[networkID]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	rpcURL, hasRPC := p.rpcEndpoints[networkID]
	contractAddr, hasContract := p.contractAddresses[networkID]
	if !hasRPC || !hasContract {
		return nil, dErrors.Newf(dErrors.CodeUnsupportedNetwork, "network %s is not configured", networkID)
	}

	v, err, _ := p.group.Do(networkID, func() (any, error) {
		// Re-check under the flight: another caller may have stored the
		// client between our read and the Do.
		p.mu.RLock()
		existing, ok := p.clients[networkID]
		p.mu.RUnlock()
		if ok {
			return existing, nil
		}

		built, err := p.dial(ctx, networkID, rpcURL, contractAddr, p.confirmTimeout)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.clients[networkID] = built
		p.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Backend), nil
}
