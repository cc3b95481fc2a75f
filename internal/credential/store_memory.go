package credential

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"signet/internal/domain"
	"signet/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by tests and STORAGE_MODE=memory
// deployments. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]domain.Credential        // issuer/id
	states      map[string]domain.PublishedState    // issuer/network
	revocations map[string]domain.RevocationRecord  // issuer/nonce
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]domain.Credential),
		states:      make(map[string]domain.PublishedState),
		revocations: make(map[string]domain.RevocationRecord),
	}
}

func credKey(issuer, id string) string     { return issuer + "/" + id }
func stateKey(issuer, network string) string { return issuer + "/" + network }
func revKey(issuer string, nonce uint64) string {
	return fmt.Sprintf("%s/%d", issuer, nonce)
}

func (s *MemoryStore) Create(_ context.Context, cred domain.Credential) (string, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credKey(cred.Issuer, cred.ID)
	if _, exists := s.credentials[key]; exists {
		return "", sentinel.ErrAlreadyExists
	}
	s.credentials[key] = cred
	return cred.ID, nil
}

func (s *MemoryStore) GetByID(_ context.Context, issuer, credentialID string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[credKey(issuer, credentialID)]
	if !ok {
		return domain.Credential{}, sentinel.ErrNotFound
	}
	return cred, nil
}

func (s *MemoryStore) GetByUser(_ context.Context, issuer, subject, schemaType string) ([]domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Credential{}
	for _, cred := range s.credentials {
		if cred.Issuer != issuer || cred.Subject() != subject {
			continue
		}
		if schemaType != "" && cred.CredentialSchema.Type != schemaType {
			continue
		}
		out = append(out, cred)
	}
	return out, nil
}

func (s *MemoryStore) SaveState(_ context.Context, state domain.PublishedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stateKey(state.IssuerDID, state.NetworkID)
	if existing, ok := s.states[key]; ok && state.Revision <= existing.Revision {
		return sentinel.ErrStaleWrite
	}
	s.states[key] = state
	return nil
}

func (s *MemoryStore) LatestState(_ context.Context, issuer, networkID string) (domain.PublishedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(issuer, networkID)]
	if !ok {
		return domain.PublishedState{}, sentinel.ErrNotFound
	}
	return state, nil
}

func (s *MemoryStore) UsedNonces(_ context.Context, issuer string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []uint64{}
	for _, cred := range s.credentials {
		if cred.Issuer == issuer && cred.CredentialStatus != nil {
			out = append(out, cred.CredentialStatus.RevocationNonce)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveRevocation(_ context.Context, rec domain.RevocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := revKey(rec.IssuerDID, rec.Nonce)
	if _, exists := s.revocations[key]; exists {
		return sentinel.ErrAlreadyExists
	}
	s.revocations[key] = rec
	return nil
}

func (s *MemoryStore) GetRevocation(_ context.Context, issuer string, nonce uint64) (domain.RevocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.revocations[revKey(issuer, nonce)]
	if !ok {
		return domain.RevocationRecord{}, sentinel.ErrNotFound
	}
	return rec, nil
}
