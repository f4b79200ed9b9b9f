package timer_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	timer "github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}

// tickers hands out manual tickers and remembers the latest one.
type tickers struct {
	mu     sync.Mutex
	latest *manualTicker
}

func (f *tickers) factory(time.Duration) timer.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &manualTicker{ch: make(chan time.Time)}
	return f.latest
}

func (f *tickers) tick(n int) {
	f.mu.Lock()
	tk := f.latest
	f.mu.Unlock()
	for i := 0; i < n; i++ {
		tk.ch <- time.Now()
	}
}

type cueLog struct {
	mu   sync.Mutex
	cues []timer.Cue
}

func (c *cueLog) record(cue timer.Cue, _ timer.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cues = append(c.cues, cue)
}

func (c *cueLog) list() []timer.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]timer.Cue{}, c.cues...)
}

func waitRemaining(t *timer.Timer, want int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if t.Snapshot().RemainingSeconds == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func newTimer(d time.Duration, f *tickers, cues *cueLog, opts ...timer.Option) *timer.Timer {
	base := []timer.Option{
		timer.WithDuration(d),
		timer.WithTicker(f.factory),
		timer.WithCueHandler(cues.record),
		timer.WithLogger(logger.Nop()),
	}
	return timer.New(append(base, opts...)...)
}

func TestTimerTurns(t *testing.T) {
	Convey("Given a ten minute timer", t, func() {
		f := &tickers{}
		cues := &cueLog{}
		tm := newTimer(10*time.Minute, f, cues, timer.WithSpeakers("Anna", "Bob"))
		defer tm.Close()

		snap := tm.Snapshot()
		So(snap.State, ShouldEqual, timer.StateIdle)
		So(snap.DurationSeconds, ShouldEqual, 600)
		So(snap.HalfSeconds, ShouldEqual, 300)
		So(snap.Speaker, ShouldEqual, timer.SpeakerA)
		So(snap.SpeakerName, ShouldEqual, "Anna")

		Convey("When it is started and driven tick by tick", func() {
			So(tm.Start(), ShouldBeNil)
			for i := 0; i < 299; i++ {
				So(tm.Tick(), ShouldBeTrue)
			}

			Convey("Then the first speaker talks until the midpoint", func() {
				snap := tm.Snapshot()
				So(snap.RemainingSeconds, ShouldEqual, 301)
				So(snap.Speaker, ShouldEqual, timer.SpeakerA)
				So(cues.list(), ShouldBeEmpty)
			})

			Convey("Then the turn changes exactly once past the midpoint", func() {
				tm.Tick()
				tm.Tick()
				snap := tm.Snapshot()
				So(snap.ElapsedSeconds, ShouldEqual, 301)
				So(snap.RemainingSeconds, ShouldEqual, 299)
				So(snap.Speaker, ShouldEqual, timer.SpeakerB)
				So(snap.SpeakerName, ShouldEqual, "Bob")
				So(cues.list(), ShouldResemble, []timer.Cue{timer.CueTurnChange})
			})

			Convey("Then the timer stops at zero with exactly one expiry cue", func() {
				running := true
				for i := 0; i < 301; i++ {
					running = tm.Tick()
				}
				snap := tm.Snapshot()
				So(running, ShouldBeFalse)
				So(snap.State, ShouldEqual, timer.StateExpired)
				So(snap.RemainingSeconds, ShouldEqual, 0)
				So(snap.Progress, ShouldEqual, 100.0)
				So(snap.Cues, ShouldEqual, 2)
				So(cues.list(), ShouldResemble, []timer.Cue{timer.CueTurnChange, timer.CueExpired})

				So(tm.Tick(), ShouldBeFalse)
				So(cues.list(), ShouldHaveLength, 2)
				So(errors.Is(tm.Start(), timer.ErrExpired), ShouldBeTrue)
			})
		})
	})
}

func TestTimerPauseResume(t *testing.T) {
	Convey("Given a running timer fed by a ticker", t, func() {
		f := &tickers{}
		cues := &cueLog{}
		tm := newTimer(2*time.Minute, f, cues)
		defer tm.Close()

		So(tm.Start(), ShouldBeNil)
		f.tick(5)
		So(waitRemaining(tm, 115), ShouldBeTrue)

		Convey("When it is paused and resumed", func() {
			So(tm.Pause(), ShouldBeNil)
			So(tm.Snapshot().State, ShouldEqual, timer.StatePaused)
			So(tm.Tick(), ShouldBeFalse)
			So(tm.Snapshot().RemainingSeconds, ShouldEqual, 115)

			So(tm.Start(), ShouldBeNil)
			f.tick(3)

			Convey("Then no tick is missed or doubled", func() {
				So(waitRemaining(tm, 112), ShouldBeTrue)
				So(tm.Pause(), ShouldBeNil)
				So(tm.Snapshot().RemainingSeconds, ShouldEqual, 112)
			})
		})

		Convey("When pausing twice", func() {
			So(tm.Pause(), ShouldBeNil)

			Convey("Then the second pause reports the timer is not running", func() {
				So(errors.Is(tm.Pause(), timer.ErrNotRunning), ShouldBeTrue)
			})
		})

		Convey("When started again while running", func() {
			Convey("Then it is a no-op", func() {
				So(tm.Start(), ShouldBeNil)
				So(tm.Snapshot().State, ShouldEqual, timer.StateRunning)
			})
		})
	})
}

func TestTimerReset(t *testing.T) {
	Convey("Given a timer past its midpoint", t, func() {
		f := &tickers{}
		cues := &cueLog{}
		tm := newTimer(time.Minute, f, cues)
		defer tm.Close()

		So(tm.Start(), ShouldBeNil)
		for i := 0; i < 40; i++ {
			tm.Tick()
		}
		So(cues.list(), ShouldHaveLength, 1)

		Convey("When it is reset", func() {
			tm.Reset()
			snap := tm.Snapshot()

			Convey("Then it is idle with the full duration and no cue history", func() {
				So(snap.State, ShouldEqual, timer.StateIdle)
				So(snap.RemainingSeconds, ShouldEqual, 60)
				So(snap.Cues, ShouldEqual, 0)
				So(snap.Speaker, ShouldEqual, timer.SpeakerA)
			})

			Convey("Then the duration can be changed again", func() {
				So(tm.SetDuration(5*time.Minute), ShouldBeNil)
				So(tm.Snapshot().RemainingSeconds, ShouldEqual, 300)
			})

			Convey("Then the turn change cue fires again on the next run", func() {
				So(tm.Start(), ShouldBeNil)
				for i := 0; i < 30; i++ {
					tm.Tick()
				}
				So(cues.list(), ShouldResemble, []timer.Cue{timer.CueTurnChange, timer.CueTurnChange})
			})
		})

		Convey("When the duration is changed while running", func() {
			Convey("Then it is rejected", func() {
				So(errors.Is(tm.SetDuration(2*time.Minute), timer.ErrNotIdle), ShouldBeTrue)
			})
		})
	})

	Convey("Given invalid durations", t, func() {
		tm := timer.New(timer.WithLogger(logger.Nop()))

		So(tm.Snapshot().DurationSeconds, ShouldEqual, 3600)
		for _, d := range []time.Duration{0, 30 * time.Second, 90 * time.Second, 241 * time.Minute} {
			So(errors.Is(tm.SetDuration(d), timer.ErrInvalidDuration), ShouldBeTrue)
		}
	})
}

func TestChecklist(t *testing.T) {
	Convey("Given a new timer", t, func() {
		tm := timer.New(timer.WithLogger(logger.Nop()))

		Convey("Then every checklist item starts unchecked", func() {
			So(tm.Snapshot().Checklist, ShouldHaveLength, 3)
			for _, v := range tm.Snapshot().Checklist {
				So(v, ShouldBeFalse)
			}
		})

		Convey("When an item is toggled twice", func() {
			first, err1 := tm.ToggleChecklist(timer.ItemIdealClient)
			second, err2 := tm.ToggleChecklist(timer.ItemIdealClient)

			Convey("Then it flips each time", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
			})
		})

		Convey("When an unknown item is toggled", func() {
			_, err := tm.ToggleChecklist("nope")
			So(errors.Is(err, timer.ErrUnknownItem), ShouldBeTrue)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a registry capped at two timers", t, func() {
		r := timer.NewRegistry(2)
		defer r.Close()
		f := &tickers{}

		a, err := r.Create(timer.WithTicker(f.factory), timer.WithLogger(logger.Nop()))
		So(err, ShouldBeNil)
		_, err = r.Create(timer.WithLogger(logger.Nop()))
		So(err, ShouldBeNil)

		Convey("Then a third timer is refused", func() {
			_, err := r.Create()
			So(errors.Is(err, timer.ErrTooManyTimers), ShouldBeTrue)
		})

		Convey("When a running timer is deleted", func() {
			So(a.Start(), ShouldBeNil)
			So(r.Running(), ShouldEqual, 1)
			So(r.Delete(a.ID()), ShouldBeTrue)

			Convey("Then its goroutine is stopped and it is gone", func() {
				_, ok := r.Get(a.ID())
				So(ok, ShouldBeFalse)
				So(r.Len(), ShouldEqual, 1)
				So(a.Snapshot().State, ShouldEqual, timer.StatePaused)
				So(r.Delete(a.ID()), ShouldBeFalse)
			})
		})
	})
}

func TestWriteToneWAV(t *testing.T) {
	Convey("Given the default cue tone", t, func() {
		var buf bytes.Buffer
		err := timer.WriteToneWAV(&buf, timer.DefaultTone)
		out := buf.Bytes()

		Convey("Then a mono 16-bit PCM WAV is produced", func() {
			So(err, ShouldBeNil)
			So(string(out[0:4]), ShouldEqual, "RIFF")
			So(string(out[8:12]), ShouldEqual, "WAVE")
			So(binary.LittleEndian.Uint16(out[22:24]), ShouldEqual, 1)
			So(binary.LittleEndian.Uint32(out[24:28]), ShouldEqual, 44100)
			So(binary.LittleEndian.Uint16(out[34:36]), ShouldEqual, 16)
			So(len(out), ShouldEqual, 44+timer.DefaultTone.Samples()*2)
		})

		Convey("Then the gain decays over the tone", func() {
			peak := func(from, to int) int {
				m := 0
				for i := from; i < to; i += 2 {
					v := int(int16(binary.LittleEndian.Uint16(out[i : i+2])))
					if v < 0 {
						v = -v
					}
					if v > m {
						m = v
					}
				}
				return m
			}
			head := peak(44, 44+2000)
			tail := peak(len(out)-2000, len(out))
			So(head, ShouldBeGreaterThan, tail*10)
		})
	})
}
