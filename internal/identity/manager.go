package identity

import (
	"context"
	"errors"
	"sync"

	dErrors "signet/pkg/domain-errors"
)

// SeedFunc loads the durable portion of an issuer's state on first use.
// Returning a zero Seed means the issuer has never published.
type SeedFunc func(ctx context.Context, issuerDID, networkID string) (Seed, error)

// Manager owns one State per issuer and enforces the ordering guarantee:
// at most one chain-mutating operation per issuer at a time, with no
// global lock, so different issuers never contend.
type Manager struct {
	mu     sync.Mutex
	states map[string]*entry
	seed   SeedFunc
}

type entry struct {
	state *State
	// sem is a one-slot semaphore instead of a sync.Mutex so acquisition
	// can honor context cancellation and confirmation timeouts never leave
	// an issuer permanently locked.
	sem chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithSeed installs the loader that rebuilds issuer state from durable
// storage, so a restarted process never re-issues revision numbers or
// nonces it already published.
func WithSeed(fn SeedFunc) Option {
	return func(m *Manager) { m.seed = fn }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{states: make(map[string]*entry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) entryFor(ctx context.Context, issuerDID, networkID string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.states[issuerDID]
	if !ok {
		var seed Seed
		if m.seed != nil {
			var err error
			if seed, err = m.seed(ctx, issuerDID, networkID); err != nil {
				return nil, err
			}
		}
		st, err := newState(ctx, issuerDID, networkID, seed)
		if err != nil {
			return nil, err
		}
		e = &entry{state: st, sem: make(chan struct{}, 1)}
		m.states[issuerDID] = e
	}
	return e, nil
}

// Exclusive runs fn holding the issuer's exclusive section. The section is
// released on every path, including panic and context cancellation while
// waiting to enter.
func (m *Manager) Exclusive(ctx context.Context, issuerDID, networkID string, fn func(*State) error) error {
	e, err := m.entryFor(ctx, issuerDID, networkID)
	if err != nil {
		return err
	}
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return dErrors.Wrap(ctx.Err(), dErrors.CodeChainTimeout, "waiting for issuer "+issuerDID)
		}
		return dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "wait for issuer "+issuerDID+" abandoned")
	}
	defer func() { <-e.sem }()
	return fn(e.state)
}

// Inspect runs fn with the issuer state without entering the exclusive
// section. For read-only accesses that tolerate concurrent publishes, such
// as the terminal revoked-set fast path.
func (m *Manager) Inspect(ctx context.Context, issuerDID, networkID string, fn func(*State)) error {
	e, err := m.entryFor(ctx, issuerDID, networkID)
	if err != nil {
		return err
	}
	fn(e.state)
	return nil
}
