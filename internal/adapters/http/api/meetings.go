// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/types"
)

// IdempotencyHeader names the request header that makes meeting creation
// safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// MeetingDependencies defines the interface for the shared event documents.
type MeetingDependencies interface {
	EventInfo(ctx context.Context) model.EventInfo
	SetEventInfo(ctx context.Context, info model.EventInfo) (model.EventInfo, error)
	Roster(ctx context.Context) types.RosterView
	SetRoster(ctx context.Context, raw json.RawMessage) (types.RosterView, error)
	Meetings(ctx context.Context, f types.MeetingFilter) []model.Meeting
	RefreshMeetings(ctx context.Context) []model.Meeting
	CreateMeeting(ctx context.Context, person1, person2 string, round model.Round, idempotencyKey string) (model.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
	Availability(ctx context.Context) []types.RoundAvailability
	Eligibility(ctx context.Context, person string, round model.Round) (types.Eligibility, error)
	RoundSummaries(ctx context.Context) []types.RoundSummary
	PersonSummary(ctx context.Context, person string) (types.PersonSummary, error)
	Overview(ctx context.Context) (types.Overview, error)
	Export(ctx context.Context) (string, []byte, error)
}

// MeetingsHandler handles event info, roster, meeting and summary requests.
type MeetingsHandler struct {
	deps MeetingDependencies
}

// NewMeetingsHandler creates a new meetings handler.
func NewMeetingsHandler(deps MeetingDependencies) *MeetingsHandler {
	return &MeetingsHandler{deps: deps}
}

// meetingRequest mirrors the OpenAPI schema for POST /api/meetings.
type meetingRequest struct {
	Person1 string      `json:"person1"`
	Person2 string      `json:"person2"`
	Round   model.Round `json:"round"`
}

// HandleGetEvent handles GET /api/event requests.
func (h *MeetingsHandler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.EventInfo(r.Context()))
}

// HandlePutEvent handles PUT /api/event requests.
func (h *MeetingsHandler) HandlePutEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_event"
	var req model.EventInfo
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	info, err := h.deps.SetEventInfo(r.Context(), req)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleGetParticipants handles GET /api/participants requests.
func (h *MeetingsHandler) HandleGetParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Roster(r.Context()))
}

// HandlePutParticipants handles PUT /api/participants requests. The body is
// either {"round1": [...], "round2": [...]} or a flat list of names.
func (h *MeetingsHandler) HandlePutParticipants(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_participants"
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.SetRoster(r.Context(), raw)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleListMeetings handles GET /api/meetings?round=&person= requests.
func (h *MeetingsHandler) HandleListMeetings(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_meetings"
	f := types.MeetingFilter{Person: r.URL.Query().Get("person")}
	if v := r.URL.Query().Get("round"); v != "" {
		round, ok := model.ParseRound(v)
		if !ok {
			writeFailure(w, op, NewKind(op, ErrBadRequest))
			return
		}
		f.Round = round
	}
	writeJSON(w, http.StatusOK, h.deps.Meetings(r.Context(), f))
}

// HandleCreateMeeting handles POST /api/meetings requests.
func (h *MeetingsHandler) HandleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_meeting"
	var req meetingRequest
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.CreateMeeting(r.Context(), req.Person1, req.Person2, req.Round, r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleRefreshMeetings handles POST /api/meetings/refresh requests.
func (h *MeetingsHandler) HandleRefreshMeetings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.RefreshMeetings(r.Context()))
}

// HandleDeleteMeeting handles DELETE /api/meetings/{id} requests.
func (h *MeetingsHandler) HandleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_meeting"
	if err := h.deps.DeleteMeeting(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAvailability handles GET /api/availability requests.
func (h *MeetingsHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Availability(r.Context()))
}

// HandleEligibility handles GET /api/eligibility?person=&round= requests.
func (h *MeetingsHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "api.eligibility"
	round, _ := model.ParseRound(r.URL.Query().Get("round"))
	e, err := h.deps.Eligibility(r.Context(), r.URL.Query().Get("person"), round)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleOverview handles GET /api/summary requests.
func (h *MeetingsHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	const op = "api.overview"
	o, err := h.deps.Overview(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandleRoundSummaries handles GET /api/summary/rounds requests.
func (h *MeetingsHandler) HandleRoundSummaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.RoundSummaries(r.Context()))
}

// HandlePersonSummary handles GET /api/summary/people/{person} requests.
func (h *MeetingsHandler) HandlePersonSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.person_summary"
	s, err := h.deps.PersonSummary(r.Context(), r.PathValue("person"))
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleExport handles GET /api/export.pdf requests.
func (h *MeetingsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	name, pdf, err := h.deps.Export(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
