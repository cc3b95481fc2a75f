package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"signet/internal/domain"
	"signet/internal/platform/middleware"
	"signet/internal/transport/http/shared"
	dErrors "signet/pkg/domain-errors"
)

// Handler handles the issuer node's claim endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListIssuers(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.service.GetIssuers())
}

func (h *Handler) handleIssueClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := chi.URLParam(r, "identifier")

	var req domain.CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	cred, err := h.service.IssueCredential(ctx, issuerDID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "issuance failed",
			"request_id", middleware.GetRequestID(ctx),
			"issuer", issuerDID,
			"code", string(dErrors.CodeOf(err)),
			"error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, cred)
}

func (h *Handler) handleListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := chi.URLParam(r, "identifier")
	subject := r.URL.Query().Get("subject")
	schemaType := r.URL.Query().Get("schemaType")

	creds, err := h.service.GetUserCredentials(ctx, issuerDID, subject, schemaType)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, creds)
}

func (h *Handler) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := chi.URLParam(r, "identifier")
	claimID := chi.URLParam(r, "claimId")

	cred, err := h.service.GetCredentialByID(ctx, issuerDID, claimID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleRevocationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := chi.URLParam(r, "identifier")

	nonce, err := parseNonce(chi.URLParam(r, "nonce"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	revoked, err := h.service.RevocationStatus(ctx, issuerDID, nonce)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"isRevoked": revoked})
}

func (h *Handler) handleRevokeClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issuerDID := chi.URLParam(r, "identifier")

	nonce, err := parseNonce(chi.URLParam(r, "nonce"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if _, err := h.service.RevokeCredential(ctx, issuerDID, nonce); err != nil {
		h.logger.WarnContext(ctx, "revocation failed",
			"request_id", middleware.GetRequestID(ctx),
			"issuer", issuerDID,
			"nonce", nonce,
			"code", string(dErrors.CodeOf(err)),
			"error", err.Error())
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseNonce(raw string) (uint64, error) {
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "nonce %q is not a valid uint64", raw)
	}
	return nonce, nil
}
