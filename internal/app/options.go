package service

import (
	"time"

	"github.com/okian/onetoone/internal/adapters/blob"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the object store behind every document.
func WithStore(store blob.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.backend = backend
		}
	}
}

// WithDataContainer sets the container of the shared documents.
func WithDataContainer(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.dataContainer = name
		}
	}
}

// WithAttendanceContainer sets the container of the attendee documents.
func WithAttendanceContainer(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.attendanceContainer = name
		}
	}
}

// WithWorkerCount sets the number of change dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithPollInterval sets how often the meeting list is checked for external changes.
// Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.pollInterval = d
		}
	}
}

// WithTreasurer configures treasurer sessions. An empty secret is generated at
// start. password seeds the stored treasurer password when none is set.
func WithTreasurer(secret string, ttl time.Duration, password string) Option {
	return func(s *Service) {
		s.treasurerSecret = secret
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		s.treasurerPassword = password
	}
}

// WithTimerDefault sets the duration of new timers.
func WithTimerDefault(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timerDefault = d
		}
	}
}

// WithMaxTimers caps the number of timers held at once.
func WithMaxTimers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTimers = n
		}
	}
}

// WithTimerTicker replaces the one-second timer ticker.
func WithTimerTicker(f timer.TickerFactory) Option {
	return func(s *Service) {
		s.ticker = f
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
