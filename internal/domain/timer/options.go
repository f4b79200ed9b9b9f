package timer

import (
	"time"

	"github.com/okian/onetoone/pkg/logger"
)

// Option configures a Timer.
type Option func(*Timer)

// WithDuration sets the total duration. Invalid values keep the default.
func WithDuration(d time.Duration) Option {
	return func(t *Timer) {
		if validDuration(d) {
			t.total = int(d / time.Second)
			t.remaining = t.total
		}
	}
}

// WithCueHandler registers the callback invoked on each cue.
// It runs on the ticking goroutine after the timer lock is released, so it
// must not call Pause, Reset or Close on the same timer.
func WithCueHandler(fn func(Cue, Snapshot)) Option {
	return func(t *Timer) {
		t.onCue = fn
	}
}

// WithTicker replaces the one-second ticker, mainly for tests.
func WithTicker(f TickerFactory) Option {
	return func(t *Timer) {
		if f != nil {
			t.newTicker = f
		}
	}
}

// WithSpeakers names the two sides of the meeting.
func WithSpeakers(a, b string) Option {
	return func(t *Timer) {
		t.speakerA, t.speakerB = a, b
	}
}

// WithMeeting binds the timer to a scheduled meeting.
func WithMeeting(id string) Option {
	return func(t *Timer) {
		t.meetingID = id
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Timer) {
		if l != nil {
			t.logger = l
		}
	}
}
