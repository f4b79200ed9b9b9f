// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/adapters/blob"
	"github.com/okian/onetoone/internal/adapters/kvstore"
	"github.com/okian/onetoone/internal/adapters/mq/hub"
	eventqueue "github.com/okian/onetoone/internal/adapters/mq/queue"
	workerpool "github.com/okian/onetoone/internal/adapters/mq/worker"
	"github.com/okian/onetoone/internal/domain/dedupe"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

// Document keys.
const (
	keyTitle            = "event-title"
	keyDescription      = "event-description"
	keyDate             = "event-date"
	keyMeetings         = "meetings"
	keyParticipants     = "participants"
	keyPayments         = "payments"
	keyTreasurer        = "treasurer-password"
	keyAttendees        = "attendees"
	keyAttendeeMeetings = "meetings"
)

const (
	defaultTitle       = "Incontri 1-a-1"
	defaultDescription = "Organizza i tuoi incontri in due turni"
	emptyRoster        = `{"round1":[],"round2":[]}`
)

var errTreasurerStored = errors.New("treasurer password already stored")

// Service implements the API dependencies for the meeting planner.
type Service struct {
	mu sync.RWMutex

	// Storage
	store      blob.Store
	data       *kvstore.Client
	attendance *kvstore.Client

	title            *kvstore.Document[string]
	description      *kvstore.Document[string]
	date             *kvstore.Document[string]
	meetings         *kvstore.Document[model.MeetingList]
	participants     *kvstore.Document[json.RawMessage]
	payments         *kvstore.Document[model.PaymentList]
	treasurer        *kvstore.Document[string]
	attendees        *kvstore.Document[model.AttendeeList]
	attendeeMeetings *kvstore.Document[model.AttendeeMeetingList]

	// Core components
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	hub      *hub.Hub
	pool     *workerpool.Pool
	timers   *timer.Registry
	sessions *auth.Sessions

	// Configuration
	backend             string
	dataContainer       string
	attendanceContainer string
	workerCount         int
	queueSize           int
	dedupeSize          int
	pollInterval        time.Duration
	treasurerSecret     string
	sessionTTL          time.Duration
	treasurerPassword   string
	timerDefault        time.Duration
	maxTimers           int
	ticker              timer.TickerFactory
	now                 func() time.Time

	// State
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	stopWatch func()

	// Logging
	logger logger.Logger
}

// New constructs a Service. Reads and writes work right away; change dispatch,
// polling and treasurer sessions begin with Start.
func New(opts ...Option) *Service {
	s := &Service{
		backend:             "memory",
		dataContainer:       "app-data",
		attendanceContainer: "event-attendance",
		workerCount:         1,
		queueSize:           1024,
		dedupeSize:          10_000,
		pollInterval:        30 * time.Second,
		sessionTTL:          2 * time.Hour,
		timerDefault:        timer.DefaultDuration,
		maxTimers:           256,
		now:                 time.Now,
		logger:              logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = blob.NewMemory()
	}

	onConflict := kvstore.WithConflictHandler(s.superseded)
	s.data = kvstore.New(s.store, s.dataContainer, onConflict, kvstore.WithLogger(s.logger.Named("kvstore")))
	s.attendance = kvstore.New(s.store, s.attendanceContainer, onConflict, kvstore.WithLogger(s.logger.Named("kvstore")))

	s.title = kvstore.MustDocument(s.data, keyTitle, defaultTitle)
	s.description = kvstore.MustDocument(s.data, keyDescription, defaultDescription)
	s.date = kvstore.MustDocument(s.data, keyDate, "")
	s.meetings = kvstore.MustDocument(s.data, keyMeetings, model.MeetingList{})
	s.participants = kvstore.MustDocument(s.data, keyParticipants, json.RawMessage(emptyRoster))
	s.payments = kvstore.MustDocument(s.data, keyPayments, model.PaymentList{})
	s.treasurer = kvstore.MustDocument(s.data, keyTreasurer, "")
	s.attendees = kvstore.MustDocument(s.attendance, keyAttendees, model.AttendeeList{})
	s.attendeeMeetings = kvstore.MustDocument(s.attendance, keyAttendeeMeetings, model.AttendeeMeetingList{})

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.hub = hub.New(hub.WithLogger(s.logger.Named("hub")))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.hub, workerpool.WithPoolLogger(s.logger.Named("worker")))
	s.timers = timer.NewRegistry(s.maxTimers)
	return s
}

// Start begins change dispatch and meeting list polling and prepares
// treasurer sessions. A stopped service cannot be started again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return fmt.Errorf("start: %w", types.ErrNotStarted)
	}

	s.logger.Info(ctx, "starting meeting service...")

	sessions, err := auth.NewSessions(s.treasurerSecret, s.sessionTTL)
	if err != nil {
		return fmt.Errorf("treasurer sessions: %w", err)
	}
	s.sessions = sessions
	s.bootstrapTreasurer(ctx)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)
	s.stopWatch = s.meetings.Watch(runCtx, s.pollInterval, func(list model.MeetingList) {
		s.observeMeetings(list)
		s.publish(runCtx, model.ChangeMeetings, keyMeetings, s.data.Version(keyMeetings), list)
	})

	s.started = true
	s.logger.Info(ctx, "meeting service started",
		logger.String("backend", s.backend),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("pollInterval", s.pollInterval),
	)
	return nil
}

// Stop stops polling and timers, drains the change queue and closes the stream.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping meeting service...")

	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.data.Close()
	s.attendance.Close()
	s.timers.Close()
	metrics.UpdateTimersActive(0)

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "change dispatch did not drain", logger.Error(err))
	}
	s.cancel()
	s.hub.Close()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "meeting service stopped")
}

// bootstrapTreasurer stores the hash of the configured password when no
// treasurer password is stored yet.
func (s *Service) bootstrapTreasurer(ctx context.Context) {
	if s.treasurerPassword == "" || s.treasurer.Get(ctx) != "" {
		return
	}
	hash, err := auth.HashPassword(s.treasurerPassword)
	if err != nil {
		s.logger.Error(ctx, "treasurer password not stored", logger.Error(err))
		return
	}
	r, err := s.treasurer.Update(ctx, func(stored string) (string, error) {
		if stored != "" {
			return "", errTreasurerStored
		}
		return hash, nil
	})
	if errors.Is(err, errTreasurerStored) {
		return
	}
	if err != nil || !r.OK() {
		s.logger.Warn(ctx, "treasurer password not stored",
			logger.String("outcome", r.Outcome.String()),
			logger.Error(r.Err),
		)
		return
	}
	s.logger.Info(ctx, "treasurer password initialized")
}

// Subscribe returns a stream of change events and a func that ends it.
func (s *Service) Subscribe() (<-chan model.ChangeEvent, func()) {
	return s.hub.Subscribe()
}

// admit refuses new writes while the change queue is full.
func (s *Service) admit(ctx context.Context) error {
	if s.queue.Len(ctx) >= s.queueSize {
		metrics.RecordErrorByComponent("service", "backpressure")
		return types.ErrBackpressure
	}
	return nil
}

// publish enqueues a change event. A full or closed queue loses the event;
// the write it describes has already happened.
func (s *Service) publish(ctx context.Context, kind, key, version string, payload any) {
	e := model.ChangeEvent{
		ID:      uuid.NewString(),
		Kind:    kind,
		Key:     key,
		Version: version,
		At:      s.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			e.Payload = raw
		}
	}
	if err := s.queue.Enqueue(ctx, e); err != nil {
		s.logger.Warn(ctx, "change event dropped",
			logger.String("kind", kind),
			logger.String("key", key),
			logger.Error(err),
		)
	}
}

// superseded is the conflict handler of both storage clients.
func (s *Service) superseded(key string, latest json.RawMessage, version string) {
	s.publish(context.Background(), model.ChangeSuperseded, key, version, latest)
}

// settle turns a document write into the value written or an error. A conflict
// returns the stored value together with a *types.ConflictError.
func settle[T any](ctx context.Context, s *Service, key, kind string, r kvstore.Result[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	switch r.Outcome {
	case kvstore.OutcomeOK:
		s.publish(ctx, kind, key, r.Version, r.Value)
		return r.Value, nil
	case kvstore.OutcomeConflict:
		return r.Value, &types.ConflictError{Key: key, Version: r.Version, Latest: r.Value}
	default:
		return zero, fmt.Errorf("%w: %s: %w", types.ErrStorageUnavailable, key, r.Err)
	}
}

func (s *Service) session() (*auth.Sessions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sessions == nil {
		return nil, types.ErrNotStarted
	}
	return s.sessions, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"backend":     s.backend,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"cache": map[string]interface{}{
			s.dataContainer:       s.data.States(),
			s.attendanceContainer: s.attendance.States(),
		},
		"pollers":       s.data.Polled(),
		"queueLength":   s.queue.Len(ctx),
		"dedupeEntries": s.deduper.Size(),
		"timers":        s.timers.Len(),
		"timersRunning": s.timers.Running(),
		"subscribers":   s.hub.Len(),
		"dispatched":    s.pool.Processed(),
	}
	metrics.UpdateTimersActive(s.timers.Len())
	return stats
}
