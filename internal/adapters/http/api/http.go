// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MeetingDependencies
	AttendanceDependencies
	TreasurerDependencies
	TimerDependencies
	StreamDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	meetingsHandler   *MeetingsHandler
	attendanceHandler *AttendanceHandler
	treasurerHandler  *TreasurerHandler
	timersHandler     *TimersHandler
	streamHandler     *StreamHandler
	treasurer         TreasurerDependencies
	logger            logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the change stream.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKeepalive sets how often an idle change stream sends a comment line.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamHandler.keepalive = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		meetingsHandler:   NewMeetingsHandler(deps),
		attendanceHandler: NewAttendanceHandler(deps),
		treasurerHandler:  NewTreasurerHandler(deps),
		timersHandler:     NewTimersHandler(deps),
		streamHandler:     NewStreamHandler(deps),
		treasurer:         deps,
		logger:            logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streamHandler.logger = s.logger
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	treasurer := func(h http.HandlerFunc) http.HandlerFunc {
		return RequireTreasurer(s.treasurer, h)
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)

	m := s.meetingsHandler
	handle("GET /api/event", "event", m.HandleGetEvent)
	handle("PUT /api/event", "event", treasurer(m.HandlePutEvent))
	handle("GET /api/participants", "participants", m.HandleGetParticipants)
	handle("PUT /api/participants", "participants", treasurer(m.HandlePutParticipants))
	handle("GET /api/meetings", "meetings", m.HandleListMeetings)
	handle("POST /api/meetings", "meetings", m.HandleCreateMeeting)
	handle("POST /api/meetings/refresh", "meetings_refresh", m.HandleRefreshMeetings)
	handle("DELETE /api/meetings/{id}", "meeting", m.HandleDeleteMeeting)
	handle("GET /api/availability", "availability", m.HandleAvailability)
	handle("GET /api/eligibility", "eligibility", m.HandleEligibility)
	handle("GET /api/summary", "summary", m.HandleOverview)
	handle("GET /api/summary/rounds", "summary_rounds", m.HandleRoundSummaries)
	handle("GET /api/summary/people/{person}", "summary_person", m.HandlePersonSummary)
	handle("GET /api/export.pdf", "export", m.HandleExport)

	a := s.attendanceHandler
	handle("GET /api/me", "me", a.HandleMe)
	handle("GET /api/attendance", "attendance", RequirePrincipal(a.HandleList))
	handle("POST /api/attendance", "attendance", RequirePrincipal(a.HandleJoin))
	handle("DELETE /api/attendance", "attendance", RequirePrincipal(a.HandleLeave))
	handle("GET /api/attendance/meetings", "attendance_meetings", RequirePrincipal(a.HandleListMeetings))
	handle("POST /api/attendance/meetings", "attendance_meetings", RequirePrincipal(a.HandleCreateMeeting))
	handle("DELETE /api/attendance/meetings/{id}", "attendance_meeting", RequirePrincipal(a.HandleDeleteMeeting))
	handle("GET /api/attendance/eligibility", "attendance_eligibility", RequirePrincipal(a.HandleEligibility))

	t := s.treasurerHandler
	handle("POST /api/treasurer/login", "treasurer_login", t.HandleLogin)
	handle("GET /api/payments", "payments", treasurer(t.HandleListPayments))
	handle("POST /api/payments/{person}/toggle", "payment_toggle", treasurer(t.HandleTogglePayment))

	tm := s.timersHandler
	handle("POST /api/timers", "timers", tm.HandleCreate)
	handle("GET /api/timers/tone.wav", "timer_tone", tm.HandleTone)
	handle("GET /api/timers/{id}", "timer", tm.HandleGet)
	handle("DELETE /api/timers/{id}", "timer", tm.HandleDelete)
	handle("POST /api/timers/{id}/start", "timer_control", tm.HandleStart)
	handle("POST /api/timers/{id}/pause", "timer_control", tm.HandlePause)
	handle("POST /api/timers/{id}/reset", "timer_control", tm.HandleReset)
	handle("PUT /api/timers/{id}/duration", "timer_duration", tm.HandleSetDuration)
	handle("POST /api/timers/{id}/checklist/{item}", "timer_checklist", tm.HandleToggleChecklist)

	// The stream outlives any request histogram bucket.
	mux.HandleFunc("GET /api/stream", s.streamHandler.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Latest  any    `json:"latest,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes it. A superseded write carries the
// stored value so the client can redo its change on top of it.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := failure(err)
	var tagged *kindError
	if !errors.As(err, &tagged) {
		err = Wrap(op, err)
	}
	resp := errorResponse{Code: code, Message: err.Error()}
	var conflict *types.ConflictError
	if errors.As(err, &conflict) {
		resp.Latest = conflict.Latest
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v. An empty body is accepted when optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
