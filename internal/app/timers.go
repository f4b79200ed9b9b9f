package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/metrics"
)

// CreateTimer starts a timer session. A meetingID names the two speakers after
// the meeting's participants; minutes of 0 uses the default duration.
func (s *Service) CreateTimer(ctx context.Context, meetingID string, minutes int) (timer.Snapshot, error) {
	d := s.timerDefault
	if minutes != 0 {
		d = time.Duration(minutes) * time.Minute
		if minutes < 0 || d > 240*time.Minute {
			return timer.Snapshot{}, timer.ErrInvalidDuration
		}
	}

	opts := []timer.Option{
		timer.WithDuration(d),
		timer.WithCueHandler(s.cue),
		timer.WithTicker(s.ticker),
		timer.WithLogger(s.logger.Named("timer")),
	}
	if meetingID != "" {
		m, err := s.meeting(ctx, meetingID)
		if err != nil {
			return timer.Snapshot{}, err
		}
		opts = append(opts, timer.WithMeeting(m.ID), timer.WithSpeakers(m.Person1, m.Person2))
	}

	t, err := s.timers.Create(opts...)
	if err != nil {
		return timer.Snapshot{}, err
	}
	metrics.UpdateTimersActive(s.timers.Len())
	return t.Snapshot(), nil
}

// Timer returns the state of the timer with id.
func (s *Service) Timer(id string) (timer.Snapshot, error) {
	t, err := s.timer(id)
	if err != nil {
		return timer.Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// SetTimerDuration changes the duration of an idle timer.
func (s *Service) SetTimerDuration(id string, minutes int) (timer.Snapshot, error) {
	return s.control(id, func(t *timer.Timer) error {
		return t.SetDuration(time.Duration(minutes) * time.Minute)
	})
}

// StartTimer starts or resumes a timer.
func (s *Service) StartTimer(id string) (timer.Snapshot, error) {
	return s.control(id, (*timer.Timer).Start)
}

// PauseTimer pauses a running timer.
func (s *Service) PauseTimer(id string) (timer.Snapshot, error) {
	return s.control(id, (*timer.Timer).Pause)
}

// ResetTimer returns a timer to idle with its configured duration.
func (s *Service) ResetTimer(id string) (timer.Snapshot, error) {
	return s.control(id, func(t *timer.Timer) error {
		t.Reset()
		return nil
	})
}

// ToggleChecklist flips a checklist item of a timer session.
func (s *Service) ToggleChecklist(id, item string) (timer.Snapshot, error) {
	return s.control(id, func(t *timer.Timer) error {
		_, err := t.ToggleChecklist(item)
		return err
	})
}

// DeleteTimer stops and forgets a timer.
func (s *Service) DeleteTimer(id string) error {
	if !s.timers.Delete(id) {
		return fmt.Errorf("timer %s: %w", id, types.ErrNotFound)
	}
	metrics.UpdateTimersActive(s.timers.Len())
	return nil
}

// ToneWAV writes the cue tone.
func (s *Service) ToneWAV(w io.Writer) error {
	return timer.WriteToneWAV(w, timer.DefaultTone)
}

func (s *Service) control(id string, fn func(*timer.Timer) error) (timer.Snapshot, error) {
	t, err := s.timer(id)
	if err != nil {
		return timer.Snapshot{}, err
	}
	if err := fn(t); err != nil {
		return t.Snapshot(), err
	}
	return t.Snapshot(), nil
}

func (s *Service) timer(id string) (*timer.Timer, error) {
	t, ok := s.timers.Get(id)
	if !ok {
		return nil, fmt.Errorf("timer %s: %w", id, types.ErrNotFound)
	}
	return t, nil
}

type cueEvent struct {
	Cue   timer.Cue      `json:"cue"`
	Timer timer.Snapshot `json:"timer"`
}

// cue runs on the timer goroutine.
func (s *Service) cue(c timer.Cue, snap timer.Snapshot) {
	metrics.RecordTimerCue(string(c))
	s.publish(context.Background(), model.ChangeTimerCue, snap.ID, "", cueEvent{Cue: c, Timer: snap})
}
