// Package issuer orchestrates the credential issuance and revocation
// pipelines: schema resolution, deterministic claim building, on-chain
// publication, proof generation and durable storage.
package issuer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signet/internal/audit"
	"signet/internal/chain"
	"signet/internal/claims"
	"signet/internal/credential"
	"signet/internal/domain"
	"signet/internal/identity"
	"signet/internal/issuer/registry"
	"signet/internal/platform/metrics"
	"signet/internal/schema"
	dErrors "signet/pkg/domain-errors"
	"signet/pkg/platform/sentinel"
)

const defaultSchemaType = "JsonSchemaValidator2018"

// SchemaResolver fetches schema documents. Satisfied by schema.Resolver.
type SchemaResolver interface {
	Resolve(ctx context.Context, schemaURI string) (schema.Schema, error)
}

// ClientPool hands out per-network chain backends. Satisfied by chain.Pool.
type ClientPool interface {
	Client(ctx context.Context, networkID string) (chain.Backend, error)
}

// StatusCache caches terminal revocation answers across processes. Revoked
// is forever, so entries never need invalidation.
type StatusCache interface {
	IsRevoked(ctx context.Context, issuerDID string, nonce uint64) bool
	MarkRevoked(ctx context.Context, issuerDID string, nonce uint64)
}

// Service is the credential issuance and revocation engine.
type Service struct {
	registry *registry.Registry
	pool     ClientPool
	states   *identity.Manager
	schemas  SchemaResolver
	store    credential.Store

	auditPub    *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	statusCache StatusCache
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithAudit(p *audit.Publisher) Option   { return func(s *Service) { s.auditPub = p } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithStatusCache(c StatusCache) Option  { return func(s *Service) { s.statusCache = c } }

// New wires the issuance engine.
func New(reg *registry.Registry, pool ClientPool, schemas SchemaResolver, store credential.Store, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		pool:     pool,
		states:   identity.NewManager(identity.WithSeed(storeSeeder(store))),
		schemas:  schemas,
		store:    store,
		logger:   slog.Default(),
		tracer:   otel.Tracer("signet/issuer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storeSeeder rebuilds the durable part of an issuer's in-memory state on
// first use, so a restarted node continues the published revision sequence
// and keeps rejecting nonces already bound to stored credentials.
func storeSeeder(store credential.Store) identity.SeedFunc {
	return func(ctx context.Context, issuerDID, networkID string) (identity.Seed, error) {
		var seed identity.Seed
		state, err := store.LatestState(ctx, issuerDID, networkID)
		switch {
		case err == nil:
			seed.Revision = state.Revision
		case !errors.Is(err, sentinel.ErrNotFound):
			return identity.Seed{}, dErrors.Wrap(err, dErrors.CodeStorage, "load persisted identity state")
		}
		nonces, err := store.UsedNonces(ctx, issuerDID)
		if err != nil {
			return identity.Seed{}, dErrors.Wrap(err, dErrors.CodeStorage, "load used revocation nonces")
		}
		seed.UsedNonces = nonces
		return seed, nil
	}
}

// GetIssuers lists configured issuer DIDs in configuration order.
func (s *Service) GetIssuers() []string {
	return s.registry.List()
}

// IssueCredential runs the full issuance pipeline. On success the claim is
// committed on chain, the inclusion proof references the root of that
// exact publish, and the credential document is durably stored.
func (s *Service) IssueCredential(ctx context.Context, issuerDID string, req domain.CredentialRequest) (domain.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.IssueCredential",
		trace.WithAttributes(attribute.String("issuer.did", issuerDID)))
	defer span.End()

	ident, err := s.registry.Resolve(issuerDID)
	if err != nil {
		return domain.Credential{}, err
	}

	// Reject unbuildable requests before any network or chain call.
	if err := claims.ValidateRequest(req); err != nil {
		return domain.Credential{}, err
	}

	backend, err := s.pool.Client(ctx, ident.NetworkID)
	if err != nil {
		return domain.Credential{}, err
	}

	fetchStart := time.Now()
	sch, err := s.schemas.Resolve(ctx, req.CredentialSchema)
	if err != nil {
		s.countFailure(err)
		return domain.Credential{}, err
	}
	s.observeSchemaFetch(time.Since(fetchStart))

	coreClaim, err := claims.Build(ident.DID, sch, req)
	if err != nil {
		s.countFailure(err)
		return domain.Credential{}, err
	}

	var (
		cred      domain.Credential
		published domain.PublishedState
	)
	err = s.states.Exclusive(ctx, issuerDID, ident.NetworkID, func(st *identity.State) error {
		if err := st.CheckClaim(ctx, coreClaim); err != nil {
			return err
		}

		publishStart := time.Now()
		txHash, err := backend.SubmitClaim(ctx, ident.PrivateKey(), coreClaim.IndexHash, coreClaim.ValueHash)
		if err != nil {
			return err
		}
		s.observeChainPublish(time.Since(publishStart))

		published, err = st.CommitClaim(ctx, coreClaim, txHash)
		if err != nil {
			return err
		}

		proof, err := st.Prove(ctx, coreClaim, published)
		if err != nil {
			return err
		}

		cred = s.assembleCredential(ident, req, coreClaim, proof)

		// The claim is already committed on chain; storage failures from
		// here on are surfaced with the tx hash so a retry job can rebuild
		// the document without resubmitting the transaction.
		if err := s.store.SaveState(ctx, published); err != nil {
			return storageAfterPublish(err, published)
		}
		storedID, err := s.store.Create(ctx, cred)
		if err != nil {
			return storageAfterPublish(err, published)
		}
		cred.ID = storedID
		return nil
	})
	if err != nil {
		s.countFailure(err)
		return domain.Credential{}, err
	}

	s.emitAudit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		IssuerDID:    issuerDID,
		Subject:      cred.Subject(),
		CredentialID: cred.ID,
		Nonce:        coreClaim.RevocationNonce,
		TxHash:       published.TxHash,
		NetworkID:    ident.NetworkID,
	})
	if s.metrics != nil {
		s.metrics.CredentialsIssued.WithLabelValues(ident.NetworkID).Inc()
	}
	s.logger.InfoContext(ctx, "credential issued",
		"issuer", issuerDID,
		"subject", cred.Subject(),
		"credential_id", cred.ID,
		"nonce", coreClaim.RevocationNonce)
	return cred, nil
}

// GetUserCredentials lists a subject's credentials from one issuer.
func (s *Service) GetUserCredentials(ctx context.Context, issuerDID, subject, schemaType string) ([]domain.Credential, error) {
	if _, err := s.registry.Resolve(issuerDID); err != nil {
		return nil, err
	}
	creds, err := s.store.GetByUser(ctx, issuerDID, subject, schemaType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "list credentials")
	}
	return creds, nil
}

// GetCredentialByID fetches one credential document.
func (s *Service) GetCredentialByID(ctx context.Context, issuerDID, credentialID string) (domain.Credential, error) {
	if _, err := s.registry.Resolve(issuerDID); err != nil {
		return domain.Credential{}, err
	}
	cred, err := s.store.GetByID(ctx, issuerDID, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Credential{}, dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", credentialID)
		}
		return domain.Credential{}, dErrors.Wrap(err, dErrors.CodeStorage, "fetch credential")
	}
	return cred, nil
}

// RevokeCredential submits the revocation transaction and waits for
// confirmation. The check-then-act against existing revocations is best
// effort; a lost race surfaces as the contract's revert.
func (s *Service) RevokeCredential(ctx context.Context, issuerDID string, nonce uint64) (domain.RevocationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "issuer.RevokeCredential",
		trace.WithAttributes(attribute.String("issuer.did", issuerDID), attribute.Int64("nonce", int64(nonce))))
	defer span.End()

	ident, err := s.registry.Resolve(issuerDID)
	if err != nil {
		return domain.RevocationRecord{}, err
	}

	if _, err := s.store.GetRevocation(ctx, issuerDID, nonce); err == nil {
		return domain.RevocationRecord{}, alreadyRevoked(issuerDID, nonce)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.RevocationRecord{}, dErrors.Wrap(err, dErrors.CodeStorage, "check revocation record")
	}

	backend, err := s.pool.Client(ctx, ident.NetworkID)
	if err != nil {
		return domain.RevocationRecord{}, err
	}

	if revoked, err := backend.IsRevoked(ctx, nonce); err == nil && revoked {
		s.markRevoked(ctx, issuerDID, ident.NetworkID, nonce)
		return domain.RevocationRecord{}, alreadyRevoked(issuerDID, nonce)
	}

	var rec domain.RevocationRecord
	err = s.states.Exclusive(ctx, issuerDID, ident.NetworkID, func(st *identity.State) error {
		txHash, err := backend.SubmitRevocation(ctx, ident.PrivateKey(), nonce)
		if err != nil {
			return err
		}
		st.MarkRevoked(nonce)

		rec = domain.RevocationRecord{
			IssuerDID: issuerDID,
			Nonce:     nonce,
			RevokedAt: time.Now().UTC(),
			TxHash:    txHash,
		}
		if err := s.store.SaveRevocation(ctx, rec); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return alreadyRevoked(issuerDID, nonce)
			}
			return dErrors.Wrap(err, dErrors.CodeStorage, "save revocation record").
				WithField("tx_hash", txHash)
		}
		return nil
	})
	if err != nil {
		return domain.RevocationRecord{}, err
	}

	if s.statusCache != nil {
		s.statusCache.MarkRevoked(ctx, issuerDID, nonce)
	}
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionCredentialRevoked,
		IssuerDID: issuerDID,
		Nonce:     nonce,
		TxHash:    rec.TxHash,
		NetworkID: ident.NetworkID,
	})
	if s.metrics != nil {
		s.metrics.CredentialsRevoked.WithLabelValues(ident.NetworkID).Inc()
	}
	s.logger.InfoContext(ctx, "credential revoked", "issuer", issuerDID, "nonce", nonce, "tx_hash", rec.TxHash)
	return rec, nil
}

// RevocationStatus answers "is this nonce revoked". Read-only, safe to
// call concurrently and unboundedly often. Terminal true answers are
// served from local and shared caches before touching the chain.
func (s *Service) RevocationStatus(ctx context.Context, issuerDID string, nonce uint64) (bool, error) {
	ident, err := s.registry.Resolve(issuerDID)
	if err != nil {
		return false, err
	}

	var known bool
	_ = s.states.Inspect(ctx, issuerDID, ident.NetworkID, func(st *identity.State) {
		known = st.KnownRevoked(nonce)
	})
	if known {
		return true, nil
	}
	if s.statusCache != nil && s.statusCache.IsRevoked(ctx, issuerDID, nonce) {
		return true, nil
	}
	if _, err := s.store.GetRevocation(ctx, issuerDID, nonce); err == nil {
		return true, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeStorage, "check revocation record")
	}

	backend, err := s.pool.Client(ctx, ident.NetworkID)
	if err != nil {
		return false, err
	}
	revoked, err := backend.IsRevoked(ctx, nonce)
	if err != nil {
		return false, err
	}
	if revoked {
		s.markRevoked(ctx, issuerDID, ident.NetworkID, nonce)
	}
	return revoked, nil
}

func (s *Service) assembleCredential(ident registry.Identity, req domain.CredentialRequest, coreClaim domain.CoreClaim, proof domain.MerkleProof) domain.Credential {
	schemaType := req.Type
	if schemaType == "" {
		schemaType = defaultSchemaType
	}
	return domain.Credential{
		ID:                uuid.NewString(),
		Issuer:            ident.DID.String(),
		CredentialSubject: req.CredentialSubject,
		CredentialSchema: domain.CredentialSchemaRef{
			ID:   req.CredentialSchema,
			Type: schemaType,
		},
		CredentialStatus: &domain.CredentialStatus{
			Type:            domain.CredentialStatusSparseMerkleTree,
			RevocationNonce: coreClaim.RevocationNonce,
		},
		Proof:     []domain.MerkleProof{proof},
		CreatedAt: time.Now().UTC(),
	}
}

// markRevoked propagates an observed terminal revocation into the local
// state and shared cache.
func (s *Service) markRevoked(ctx context.Context, issuerDID, networkID string, nonce uint64) {
	_ = s.states.Inspect(ctx, issuerDID, networkID, func(st *identity.State) {
		st.MarkRevoked(nonce)
	})
	if s.statusCache != nil {
		s.statusCache.MarkRevoked(ctx, issuerDID, nonce)
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPub == nil {
		return
	}
	if err := s.auditPub.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) countFailure(err error) {
	if s.metrics != nil {
		s.metrics.IssuanceFailures.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
}

func (s *Service) observeSchemaFetch(d time.Duration) {
	if s.metrics != nil {
		s.metrics.SchemaFetchSecs.Observe(d.Seconds())
	}
}

func (s *Service) observeChainPublish(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ChainPublishSecs.Observe(d.Seconds())
	}
}

func alreadyRevoked(issuerDID string, nonce uint64) error {
	return dErrors.Newf(dErrors.CodeAlreadyRevoked, "nonce %d is already revoked for issuer %s", nonce, issuerDID)
}

func storageAfterPublish(err error, published domain.PublishedState) error {
	return dErrors.Wrap(err, dErrors.CodeStorage, "persist credential after confirmed publish").
		WithField("tx_hash", published.TxHash).
		WithField("revision", strconv.FormatUint(published.Revision, 10)).
		WithField("root", published.Root)
}
