// Package httptransport is the thin HTTP layer over the issuer service.
// Handlers decode, delegate and encode; business rules live in the service.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signet/internal/domain"
	"signet/internal/platform/middleware"
	"signet/internal/transport/http/shared"
	dErrors "signet/pkg/domain-errors"
)

const requestTimeout = 120 * time.Second

// Service is what the transport needs from the issuance engine.
type Service interface {
	GetIssuers() []string
	IssueCredential(ctx context.Context, issuerDID string, req domain.CredentialRequest) (domain.Credential, error)
	GetUserCredentials(ctx context.Context, issuerDID, subject, schemaType string) ([]domain.Credential, error)
	GetCredentialByID(ctx context.Context, issuerDID, credentialID string) (domain.Credential, error)
	RevokeCredential(ctx context.Context, issuerDID string, nonce uint64) (domain.RevocationRecord, error)
	RevocationStatus(ctx context.Context, issuerDID string, nonce uint64) (bool, error)
}

// NewRouter wires all public endpoints.
func NewRouter(svc Service, logger *slog.Logger) http.Handler {
	h := &Handler{service: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/issuers", h.handleListIssuers)
		r.Route("/identities/{identifier}", func(r chi.Router) {
			r.Use(validateIdentifier)
			r.Post("/claims", h.handleIssueClaim)
			r.Get("/claims", h.handleListClaims)
			r.Get("/claims/{claimId}", h.handleGetClaim)
			r.Get("/claims/revocation/status/{nonce}", h.handleRevocationStatus)
			r.Post("/claims/revoke/{nonce}", h.handleRevokeClaim)
		})
	})
	return r
}

// validateIdentifier rejects malformed issuer DIDs before any handler or
// service code runs.
func validateIdentifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := chi.URLParam(r, "identifier")
		if !domain.IsValidDID(identifier) {
			shared.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "identifier %q is not a valid DID", identifier))
			return
		}
		next.ServeHTTP(w, r)
	})
}
