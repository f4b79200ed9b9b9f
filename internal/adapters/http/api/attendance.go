// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/domain/model"
)

// AttendanceDependencies defines the interface for attendee operations.
type AttendanceDependencies interface {
	Attendees(ctx context.Context) []model.Attendee
	Join(ctx context.Context, p model.Principal, displayName string) (model.Attendee, error)
	Leave(ctx context.Context, p model.Principal) error
	AttendeeMeetings(ctx context.Context, userID string) []model.AttendeeMeeting
	CreateAttendeeMeeting(ctx context.Context, p model.Principal, partnerID string, round model.Round) (model.AttendeeMeeting, error)
	DeleteAttendeeMeeting(ctx context.Context, p model.Principal, id string) error
	EligibleAttendees(ctx context.Context, p model.Principal, round model.Round) ([]model.Attendee, error)
}

// AttendanceHandler handles the signed-in attendee routes. Every handler but
// HandleMe runs behind RequirePrincipal.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

type meResponse struct {
	ClientPrincipal *model.Principal `json:"clientPrincipal"`
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
}

type attendeeMeetingRequest struct {
	PartnerID string      `json:"partnerId"`
	Round     model.Round `json:"round"`
}

// HandleMe handles GET /api/me requests. A missing or unreadable principal
// reports a null clientPrincipal.
func (h *AttendanceHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}
	writeJSON(w, http.StatusOK, meResponse{ClientPrincipal: &p})
}

// HandleList handles GET /api/attendance requests.
func (h *AttendanceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Attendees(r.Context()))
}

// HandleJoin handles POST /api/attendance requests.
func (h *AttendanceHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join"
	var req joinRequest
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.Join(r.Context(), principal(r), req.DisplayName)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleLeave handles DELETE /api/attendance requests.
func (h *AttendanceHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	const op = "api.leave"
	if err := h.deps.Leave(r.Context(), principal(r)); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMeetings handles GET /api/attendance/meetings?user= requests.
func (h *AttendanceHandler) HandleListMeetings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.AttendeeMeetings(r.Context(), r.URL.Query().Get("user")))
}

// HandleCreateMeeting handles POST /api/attendance/meetings requests.
func (h *AttendanceHandler) HandleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_attendee_meeting"
	var req attendeeMeetingRequest
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.CreateAttendeeMeeting(r.Context(), principal(r), req.PartnerID, req.Round)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleDeleteMeeting handles DELETE /api/attendance/meetings/{id} requests.
func (h *AttendanceHandler) HandleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_attendee_meeting"
	if err := h.deps.DeleteAttendeeMeeting(r.Context(), principal(r), r.PathValue("id")); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEligibility handles GET /api/attendance/eligibility?round= requests.
func (h *AttendanceHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "api.attendee_eligibility"
	round, _ := model.ParseRound(r.URL.Query().Get("round"))
	list, err := h.deps.EligibleAttendees(r.Context(), principal(r), round)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func principal(r *http.Request) model.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
