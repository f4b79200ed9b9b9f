// Package timer implements the split-time meeting timer.
//
// A timer counts a fixed duration down one second at a time. While more than
// half of it remains the first speaker talks, then the second. A cue fires once
// when the turn changes and once when the time is up.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/onetoone/pkg/logger"
)

const (
	// DefaultDuration is the duration of a new timer.
	DefaultDuration = 60 * time.Minute
	maxDuration     = 240 * time.Minute
)

// State of a timer.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
)

// Speaker identifies which half of the meeting is active.
type Speaker string

const (
	SpeakerA Speaker = "A"
	SpeakerB Speaker = "B"
)

// Cue is an audible signal raised by the timer.
type Cue string

const (
	CueTurnChange Cue = "turn_change"
	CueExpired    Cue = "expired"
)

// Ticker delivers ticks. *time.Ticker satisfies it through NewTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Snapshot is a consistent view of a timer.
type Snapshot struct {
	ID               string    `json:"id"`
	MeetingID        string    `json:"meetingId,omitempty"`
	State            State     `json:"state"`
	DurationSeconds  int       `json:"durationSeconds"`
	RemainingSeconds int       `json:"remainingSeconds"`
	ElapsedSeconds   int       `json:"elapsedSeconds"`
	HalfSeconds      int       `json:"halfSeconds"`
	Speaker          Speaker   `json:"speaker"`
	SpeakerName      string    `json:"speakerName,omitempty"`
	SpeakerA         string    `json:"speakerA,omitempty"`
	SpeakerB         string    `json:"speakerB,omitempty"`
	Progress         float64   `json:"progress"`
	Cues             int       `json:"cues"`
	Checklist        Checklist `json:"checklist"`
}

// Timer is safe for concurrent use.
type Timer struct {
	mu sync.Mutex

	id        string
	meetingID string
	speakerA  string
	speakerB  string

	total     int
	remaining int
	state     State
	// last speaker seen while running; empty until the first start after a reset
	lastSpeaker Speaker
	cues        int
	checklist   Checklist

	// gen invalidates ticks from a loop that has been asked to stop
	gen  uint64
	stop chan struct{}
	done chan struct{}

	onCue     func(Cue, Snapshot)
	newTicker TickerFactory
	logger    logger.Logger
}

// New creates an idle timer.
func New(opts ...Option) *Timer {
	total := int(DefaultDuration / time.Second)
	t := &Timer{
		id:        uuid.NewString(),
		total:     total,
		remaining: total,
		state:     StateIdle,
		checklist: NewChecklist(),
		newTicker: NewTicker,
		logger:    logger.Get().Named("timer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the timer identifier.
func (t *Timer) ID() string { return t.id }

// SetDuration changes the duration. Only allowed while idle.
func (t *Timer) SetDuration(d time.Duration) error {
	if !validDuration(d) {
		return ErrInvalidDuration
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateIdle {
		return ErrNotIdle
	}
	t.total = int(d / time.Second)
	t.remaining = t.total
	return nil
}

// Start begins or resumes the countdown. Starting a running timer is a no-op.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateRunning:
		return nil
	case StateExpired:
		return ErrExpired
	case StateIdle:
		t.remaining = t.total
		t.lastSpeaker = t.speaker()
	}
	t.state = StateRunning
	t.gen++
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.gen, t.stop, t.done)
	t.logger.Debug(context.Background(), "timer started",
		logger.String("id", t.id),
		logger.Int("remaining", t.remaining),
	)
	return nil
}

// Pause stops the countdown and returns once the ticking goroutine has exited.
func (t *Timer) Pause() error {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return ErrNotRunning
	}
	t.state = StatePaused
	stop, done := t.detach()
	t.mu.Unlock()

	halt(stop, done)
	return nil
}

// Reset returns to idle with the configured duration and clears cue bookkeeping.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.state = StateIdle
	t.remaining = t.total
	t.lastSpeaker = ""
	t.cues = 0
	stop, done := t.detach()
	t.mu.Unlock()

	halt(stop, done)
}

// Close stops any ticking goroutine without changing the countdown.
func (t *Timer) Close() {
	t.mu.Lock()
	if t.state == StateRunning {
		t.state = StatePaused
	}
	stop, done := t.detach()
	t.mu.Unlock()

	halt(stop, done)
}

// Tick advances a running timer by one second and reports whether it is still running.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	return t.advance()
}

func (t *Timer) tickGen(gen uint64) bool {
	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return false
	}
	return t.advance()
}

// advance expects t.mu held and releases it.
func (t *Timer) advance() bool {
	if t.state != StateRunning {
		t.mu.Unlock()
		return false
	}
	t.remaining--
	var fired []Cue
	if sp := t.speaker(); sp != t.lastSpeaker {
		if t.lastSpeaker == SpeakerA && sp == SpeakerB {
			fired = append(fired, CueTurnChange)
		}
		t.lastSpeaker = sp
	}
	if t.remaining <= 0 {
		t.remaining = 0
		t.state = StateExpired
		fired = append(fired, CueExpired)
	}
	t.cues += len(fired)
	running := t.state == StateRunning
	snap := t.snapshot()
	handler := t.onCue
	t.mu.Unlock()

	for _, c := range fired {
		t.logger.Debug(context.Background(), "timer cue",
			logger.String("id", snap.ID),
			logger.String("cue", string(c)),
		)
		if handler != nil {
			handler(c, snap)
		}
	}
	return running
}

func (t *Timer) run(gen uint64, stop, done chan struct{}) {
	defer close(done)
	tk := t.newTicker(time.Second)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			if !t.tickGen(gen) {
				return
			}
		}
	}
}

// detach expects t.mu held.
func (t *Timer) detach() (chan struct{}, chan struct{}) {
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.gen++
	return stop, done
}

func halt(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// ToggleChecklist flips a checklist item and returns its new value.
func (t *Timer) ToggleChecklist(item string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checklist.Toggle(item)
}

// Snapshot returns the current state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Timer) snapshot() Snapshot {
	half := t.total / 2
	elapsed := t.total - t.remaining
	sp := t.speaker()
	name := t.speakerA
	if sp == SpeakerB {
		name = t.speakerB
	}
	var progress float64
	if t.total > 0 {
		progress = float64(elapsed) / float64(t.total) * 100
	}
	return Snapshot{
		ID:               t.id,
		MeetingID:        t.meetingID,
		State:            t.state,
		DurationSeconds:  t.total,
		RemainingSeconds: t.remaining,
		ElapsedSeconds:   elapsed,
		HalfSeconds:      half,
		Speaker:          sp,
		SpeakerName:      name,
		SpeakerA:         t.speakerA,
		SpeakerB:         t.speakerB,
		Progress:         progress,
		Cues:             t.cues,
		Checklist:        t.checklist.Clone(),
	}
}

func (t *Timer) speaker() Speaker {
	if t.remaining > t.total/2 {
		return SpeakerA
	}
	return SpeakerB
}

func validDuration(d time.Duration) bool {
	return d >= time.Minute && d <= maxDuration && d%time.Minute == 0
}
