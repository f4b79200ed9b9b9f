// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/onetoone/internal/domain/timer"
)

// TimerDependencies defines the interface for timer sessions.
type TimerDependencies interface {
	CreateTimer(ctx context.Context, meetingID string, minutes int) (timer.Snapshot, error)
	Timer(id string) (timer.Snapshot, error)
	SetTimerDuration(id string, minutes int) (timer.Snapshot, error)
	StartTimer(id string) (timer.Snapshot, error)
	PauseTimer(id string) (timer.Snapshot, error)
	ResetTimer(id string) (timer.Snapshot, error)
	ToggleChecklist(id, item string) (timer.Snapshot, error)
	DeleteTimer(id string) error
	ToneWAV(w io.Writer) error
}

// TimersHandler handles timer requests.
type TimersHandler struct {
	deps TimerDependencies
}

// NewTimersHandler creates a new timers handler.
func NewTimersHandler(deps TimerDependencies) *TimersHandler {
	return &TimersHandler{deps: deps}
}

type timerRequest struct {
	MeetingID string `json:"meetingId"`
	Minutes   int    `json:"minutes"`
}

type durationRequest struct {
	Minutes int `json:"minutes"`
}

// HandleCreate handles POST /api/timers requests. An empty body creates a
// timer with the default duration.
func (h *TimersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_timer"
	var req timerRequest
	if err := decode(w, r, &req, true); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	snap, err := h.deps.CreateTimer(r.Context(), req.MeetingID, req.Minutes)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleGet handles GET /api/timers/{id} requests.
func (h *TimersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.get_timer")(h.deps.Timer(r.PathValue("id")))
}

// HandleDelete handles DELETE /api/timers/{id} requests.
func (h *TimersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_timer"
	if err := h.deps.DeleteTimer(r.PathValue("id")); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStart handles POST /api/timers/{id}/start requests.
func (h *TimersHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.start_timer")(h.deps.StartTimer(r.PathValue("id")))
}

// HandlePause handles POST /api/timers/{id}/pause requests.
func (h *TimersHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.pause_timer")(h.deps.PauseTimer(r.PathValue("id")))
}

// HandleReset handles POST /api/timers/{id}/reset requests.
func (h *TimersHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.reset_timer")(h.deps.ResetTimer(r.PathValue("id")))
}

// HandleSetDuration handles PUT /api/timers/{id}/duration requests.
func (h *TimersHandler) HandleSetDuration(w http.ResponseWriter, r *http.Request) {
	const op = "api.timer_duration"
	var req durationRequest
	if err := decode(w, r, &req, false); err != nil {
		writeFailure(w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.respond(w, op)(h.deps.SetTimerDuration(r.PathValue("id"), req.Minutes))
}

// HandleToggleChecklist handles POST /api/timers/{id}/checklist/{item} requests.
func (h *TimersHandler) HandleToggleChecklist(w http.ResponseWriter, r *http.Request) {
	h.respond(w, "api.timer_checklist")(h.deps.ToggleChecklist(r.PathValue("id"), r.PathValue("item")))
}

// HandleTone handles GET /api/timers/tone.wav requests.
func (h *TimersHandler) HandleTone(w http.ResponseWriter, _ *http.Request) {
	const op = "api.timer_tone"
	var buf bytes.Buffer
	if err := h.deps.ToneWAV(&buf); err != nil {
		writeFailure(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *TimersHandler) respond(w http.ResponseWriter, op string) func(timer.Snapshot, error) {
	return func(snap timer.Snapshot, err error) {
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
