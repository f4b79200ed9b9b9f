// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/types"
)

// TreasurerDependencies defines the interface for the treasurer gate and the
// payment tracker.
type TreasurerDependencies interface {
	Login(ctx context.Context, password string) (types.Session, error)
	VerifyTreasurer(token string) error
	Payments(ctx context.Context, query string) types.PaymentsView
	TogglePayment(ctx context.Context, person string, amount *float64) (model.Payment, error)
}

// TreasurerHandler handles login and payment requests.
type TreasurerHandler struct {
	deps TreasurerDependencies
}

// NewTreasurerHandler creates a new treasurer handler.
func NewTreasurerHandler(deps TreasurerDependencies) *TreasurerHandler {
	return &TreasurerHandler{deps: deps}
}

type loginRequest struct {
	Password string `json:"password"`
}

type toggleRequest struct {
	Amount *float64 `json:"amount"`
}

// HandleLogin handles POST /api/treasurer/login requests.
func (h *TreasurerHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.treasurer_login"
	var req loginRequest
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	s, err := h.deps.Login(r.Context(), req.Password)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleListPayments handles GET /api/payments?q= requests.
func (h *TreasurerHandler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Payments(r.Context(), r.URL.Query().Get("q")))
}

// HandleTogglePayment handles POST /api/payments/{person}/toggle requests. The
// body is optional and only read for an amount.
func (h *TreasurerHandler) HandleTogglePayment(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_payment"
	var req toggleRequest
	if err := decode(w, r, &req, true); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.TogglePayment(r.Context(), r.PathValue("person"), req.Amount)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
