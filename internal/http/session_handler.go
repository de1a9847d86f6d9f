package http

import (
	"context"
	"net/http"
	"time"

	"github.com/raniamart/storefront/internal/auth"
	"github.com/raniamart/storefront/internal/logger"
)

// SessionStore is where the BFF keeps the buyer's credential.
type SessionStore interface {
	Save(c auth.Credentials, l auth.Lifetime) error
	Forget() error
	IsAuthenticated() bool
	Profile() (auth.Profile, bool)
}

type SessionHandler struct {
	store   SessionStore
	cart    CartService
	timeout time.Duration
}

func NewSessionHandler(store SessionStore, cart CartService, timeout time.Duration) *SessionHandler {
	return &SessionHandler{store: store, cart: cart, timeout: timeout}
}

type SessionRequestDTO struct {
	Token    string       `json:"token"`
	Remember bool         `json:"remember"`
	Profile  auth.Profile `json:"profile"`
}

type SessionResponseDTO struct {
	Authenticated bool          `json:"authenticated"`
	Profile       *auth.Profile `json:"profile,omitempty"`
	Admin         bool          `json:"admin"`
}

func (h *SessionHandler) sessionResponse() SessionResponseDTO {
	resp := SessionResponseDTO{Authenticated: h.store.IsAuthenticated()}
	if p, ok := h.store.Profile(); ok && resp.Authenticated {
		resp.Profile = &p
		resp.Admin = p.IsAdmin()
	}
	return resp
}

// GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// POST /api/v1/session
// remember selects the persistent lifetime; otherwise the token lives until logout or exit.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SessionRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "invalid_token", "token is required")
		return
	}

	lifetime := auth.LifetimeSession
	if req.Remember {
		lifetime = auth.LifetimePersistent
	}
	if err := h.store.Save(auth.Credentials{Token: req.Token, Profile: req.Profile}, lifetime); err != nil {
		logger.FromCtx(r.Context()).ErrorContext(r.Context(), "failed to store credential", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not store credential")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if _, err := h.cart.Refresh(ctx); err != nil {
		logger.FromCtx(r.Context()).WarnContext(r.Context(), "cart refresh after login failed", "error", err)
	}

	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// DELETE /api/v1/session
// Logout forgets the credential and clears the local cart without contacting the server.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Forget(); err != nil {
		logger.FromCtx(r.Context()).ErrorContext(r.Context(), "failed to forget credential", "error", err)
	}
	h.cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}
