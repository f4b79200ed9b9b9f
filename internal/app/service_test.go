package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/adapters/blob"
	service "github.com/okian/onetoone/internal/app"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stillTicker never fires unless the test sends on its channel.
type stillTicker struct{ c chan time.Time }

func (t stillTicker) C() <-chan time.Time { return t.c }
func (stillTicker) Stop()                 {}

func stillTickers(time.Duration) timer.Ticker { return stillTicker{c: make(chan time.Time)} }

// started builds a started service and stops it when the Convey scope ends.
func started(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger.Nop()),
		service.WithTimerTicker(stillTickers),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	Reset(svc.Stop)
	return svc
}

func setRoster(svc *service.Service, round1, round2 []string) {
	raw, err := json.Marshal(model.Roster{Round1: round1, Round2: round2})
	So(err, ShouldBeNil)
	_, err = svc.SetRoster(context.Background(), raw)
	So(err, ShouldBeNil)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then it is not started", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.GetStats()["backend"], ShouldEqual, "memory")
		})

		Convey("When it is started twice and stopped", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["pollers"], ShouldResemble, []string{"meetings"})
			svc.Stop()

			Convey("Then it reports stopped and cannot start again", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(errors.Is(svc.Start(ctx), types.ErrNotStarted), ShouldBeTrue)
				svc.Stop()
			})
		})
	})
}

func TestService_EventInfo(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started()

		Convey("Then the event info has the defaults", func() {
			info := svc.EventInfo(ctx)
			So(info.Title, ShouldEqual, "Incontri 1-a-1")
			So(info.Description, ShouldEqual, "Organizza i tuoi incontri in due turni")
			So(info.Date, ShouldBeEmpty)
		})

		Convey("When the event info is replaced", func() {
			out, err := svc.SetEventInfo(ctx, model.EventInfo{Title: " Cena ", Description: "d", Date: "2026-10-19"})
			So(err, ShouldBeNil)
			So(out.Title, ShouldEqual, "Cena")

			Convey("Then reads return it", func() {
				So(svc.EventInfo(ctx), ShouldResemble, model.EventInfo{Title: "Cena", Description: "d", Date: "2026-10-19"})
			})
		})

		Convey("When the title is blank", func() {
			_, err := svc.SetEventInfo(ctx, model.EventInfo{Title: "  "})
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestService_Roster(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started()

		Convey("Then the roster starts empty", func() {
			r := svc.Roster(ctx)
			So(r.Round1, ShouldBeEmpty)
			So(r.Round2, ShouldBeEmpty)
			So(r.All, ShouldBeEmpty)
		})

		Convey("When a flat list is stored", func() {
			r, err := svc.SetRoster(ctx, json.RawMessage(`["Cara","Anna"]`))
			So(err, ShouldBeNil)

			Convey("Then it becomes round 1", func() {
				So(r.Round1, ShouldResemble, []string{"Cara", "Anna"})
				So(r.Round2, ShouldBeEmpty)
				So(svc.Roster(ctx).All, ShouldResemble, []string{"Anna", "Cara"})
			})
		})

		Convey("When a per-round roster is stored", func() {
			setRoster(svc, []string{"Bob"}, []string{"Anna", "Bob"})
			So(svc.Roster(ctx).All, ShouldResemble, []string{"Anna", "Bob"})
		})

		Convey("When the roster is malformed", func() {
			_, err := svc.SetRoster(ctx, json.RawMessage(`"Anna"`))
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestService_Meetings(t *testing.T) {
	Convey("Given a roster and one meeting in round 1", t, func() {
		ctx := context.Background()
		svc := started()
		setRoster(svc, []string{"Anna", "Bob", "Cara", "Dani"}, nil)
		first, err := svc.CreateMeeting(ctx, " Anna ", "Bob", model.Round1, "")
		So(err, ShouldBeNil)
		So(first.ID, ShouldNotBeEmpty)
		So(first.Person1, ShouldEqual, "Anna")

		Convey("Then the free participants of round 1 exclude the pair", func() {
			av := svc.Availability(ctx)
			So(av, ShouldHaveLength, 2)
			So(av[0].Available, ShouldResemble, []string{"Cara", "Dani"})
			So(av[0].Meetings, ShouldEqual, 1)
			So(av[1].Available, ShouldBeEmpty)
		})

		Convey("When Anna also meets Cara in round 2", func() {
			_, err := svc.CreateMeeting(ctx, "Anna", "Cara", model.Round2, "")
			So(err, ShouldBeNil)

			Convey("Then only Dani is eligible for Anna in round 1", func() {
				el, err := svc.Eligibility(ctx, "anna", model.Round1)
				So(err, ShouldBeNil)
				So(el.HasMeeting, ShouldBeTrue)
				So(el.Partners, ShouldResemble, []string{"Dani"})
			})

			Convey("Then the listing filters by round and person", func() {
				So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldHaveLength, 2)
				So(svc.Meetings(ctx, types.MeetingFilter{Round: model.Round2}), ShouldHaveLength, 1)
				So(svc.Meetings(ctx, types.MeetingFilter{Person: "BOB"}), ShouldHaveLength, 1)
				So(svc.Meetings(ctx, types.MeetingFilter{Round: model.Round2, Person: "Bob"}), ShouldBeEmpty)
			})

			Convey("Then the summaries show both rounds", func() {
				rounds := svc.RoundSummaries(ctx)
				So(rounds[0].Count, ShouldEqual, 1)
				So(rounds[1].Count, ShouldEqual, 1)

				anna, err := svc.PersonSummary(ctx, "Anna")
				So(err, ShouldBeNil)
				So(anna.Rounds[0].Partner, ShouldEqual, "Bob")
				So(anna.Rounds[1].Partner, ShouldEqual, "Cara")

				dani, err := svc.PersonSummary(ctx, "Dani")
				So(err, ShouldBeNil)
				So(dani.Rounds[0].Partner, ShouldBeEmpty)

				_, err = svc.PersonSummary(ctx, "Zed")
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then the overview counts everything", func() {
				ov, err := svc.Overview(ctx)
				So(err, ShouldBeNil)
				So(ov.Participants, ShouldEqual, 4)
				So(ov.Meetings, ShouldEqual, 2)
				So(ov.ByRound[model.Round1], ShouldEqual, 1)
				So(ov.Unpaid, ShouldEqual, 4)
			})
		})

		Convey("When rule-breaking meetings are created", func() {
			_, err := svc.CreateMeeting(ctx, "bob", "ANNA", model.Round1, "")
			So(errors.Is(err, pairing.ErrAlreadyScheduled), ShouldBeTrue)
			_, err = svc.CreateMeeting(ctx, "Anna", "Cara", model.Round1, "")
			So(errors.Is(err, pairing.ErrPersonBusy), ShouldBeTrue)
			_, err = svc.CreateMeeting(ctx, "Cara", "Bob", model.Round1, "")
			So(errors.Is(err, pairing.ErrPartnerBusy), ShouldBeTrue)
			_, err = svc.CreateMeeting(ctx, "Cara", "Zed", model.Round1, "")
			So(errors.Is(err, pairing.ErrNotOnRoster), ShouldBeTrue)
			_, err = svc.CreateMeeting(ctx, "Cara", "Dani", model.RoundNone, "")
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.CreateMeeting(ctx, "Cara", " ", model.Round1, "")
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)

			Convey("Then nothing was stored", func() {
				So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldHaveLength, 1)
			})
		})

		Convey("When a creation is retried with the same idempotency key", func() {
			a, err := svc.CreateMeeting(ctx, "Cara", "Dani", model.Round1, "req-1")
			So(err, ShouldBeNil)
			b, err := svc.CreateMeeting(ctx, "Cara", "Dani", model.Round1, "req-1")
			So(err, ShouldBeNil)

			Convey("Then the first meeting is returned once", func() {
				So(b.ID, ShouldEqual, a.ID)
				So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldHaveLength, 2)
			})
		})

		Convey("When a failed creation is retried with the same key", func() {
			_, err := svc.CreateMeeting(ctx, "Cara", "Zed", model.Round1, "req-2")
			So(err, ShouldNotBeNil)
			setRoster(svc, []string{"Anna", "Bob", "Cara", "Dani", "Zed"}, nil)
			m, err := svc.CreateMeeting(ctx, "Cara", "Zed", model.Round1, "req-2")
			So(err, ShouldBeNil)
			So(m.Person2, ShouldEqual, "Zed")
		})

		Convey("When meetings are deleted", func() {
			So(errors.Is(svc.DeleteMeeting(ctx, "missing"), types.ErrNotFound), ShouldBeTrue)
			So(svc.DeleteMeeting(ctx, first.ID), ShouldBeNil)

			Convey("Then the pair is free again", func() {
				So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldBeEmpty)
				_, err := svc.CreateMeeting(ctx, "Anna", "Bob", model.Round1, "")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the list is refreshed", func() {
			So(svc.RefreshMeetings(ctx), ShouldHaveLength, 1)
		})

		Convey("When eligibility is asked with bad input", func() {
			_, err := svc.Eligibility(ctx, "Anna", model.RoundNone)
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.Eligibility(ctx, "", model.Round1)
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the report is exported", func() {
			name, pdf, err := svc.Export(ctx)
			So(err, ShouldBeNil)
			So(name, ShouldStartWith, "Incontri_1-a-1_")
			So(name, ShouldEndWith, ".pdf")
			So(bytes.HasPrefix(pdf, []byte("%PDF")), ShouldBeTrue)
		})
	})
}

func TestService_Attendance(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started()
		ann := model.Principal{IdentityProvider: "github", UserID: "u-ann", UserDetails: "ann"}
		ben := model.Principal{IdentityProvider: "github", UserID: "u-ben", UserDetails: "ben"}

		Convey("When joining without a principal or name", func() {
			_, err := svc.Join(ctx, model.Principal{}, "Ann")
			So(errors.Is(err, auth.ErrNoPrincipal), ShouldBeTrue)
			_, err = svc.Join(ctx, ann, " ")
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(svc.Leave(ctx, ann), types.ErrNotAttending), ShouldBeTrue)
		})

		Convey("When Ann joins", func() {
			a, err := svc.Join(ctx, ann, " Ann ")
			So(err, ShouldBeNil)
			So(a.DisplayName, ShouldEqual, "Ann")

			Convey("Then joining again is refused", func() {
				_, err := svc.Join(ctx, ann, "Ann")
				So(errors.Is(err, types.ErrAlreadyAttending), ShouldBeTrue)
			})

			Convey("Then Ann cannot meet someone who is not attending", func() {
				_, err := svc.CreateAttendeeMeeting(ctx, ann, ben.UserID, model.Round1)
				So(errors.Is(err, types.ErrNotAttending), ShouldBeTrue)
			})

			Convey("When Ben joins and they meet in round 1", func() {
				_, err := svc.Join(ctx, ben, "Ben")
				So(err, ShouldBeNil)
				So(svc.Attendees(ctx), ShouldHaveLength, 2)

				el, err := svc.EligibleAttendees(ctx, ann, model.Round1)
				So(err, ShouldBeNil)
				So(el, ShouldHaveLength, 1)

				m, err := svc.CreateAttendeeMeeting(ctx, ann, ben.UserID, model.Round1)
				So(err, ShouldBeNil)
				So(m.DisplayName1, ShouldEqual, "Ann")
				So(m.DisplayName2, ShouldEqual, "Ben")

				Convey("Then they cannot meet again in round 2", func() {
					_, err := svc.CreateAttendeeMeeting(ctx, ben, ann.UserID, model.Round2)
					So(errors.Is(err, pairing.ErrAlreadyMet), ShouldBeTrue)
					el, err := svc.EligibleAttendees(ctx, ann, model.Round2)
					So(err, ShouldBeNil)
					So(el, ShouldBeEmpty)
				})

				Convey("Then a third user cannot delete their meeting", func() {
					cid := model.Principal{UserID: "u-cid"}
					So(errors.Is(svc.DeleteAttendeeMeeting(ctx, cid, m.ID), types.ErrNotFound), ShouldBeTrue)
					So(svc.DeleteAttendeeMeeting(ctx, ben, m.ID), ShouldBeNil)
					So(svc.AttendeeMeetings(ctx, ""), ShouldBeEmpty)
				})

				Convey("Then leaving removes Ann and the meetings of Ann", func() {
					So(svc.Leave(ctx, ann), ShouldBeNil)
					So(svc.Attendees(ctx), ShouldHaveLength, 1)
					So(svc.AttendeeMeetings(ctx, ben.UserID), ShouldBeEmpty)
				})
			})
		})
	})
}

func TestService_Treasurer(t *testing.T) {
	Convey("Given a service with a configured treasurer password", t, func() {
		ctx := context.Background()

		Convey("When it is not started", func() {
			svc := service.New(service.WithLogger(logger.Nop()))
			_, err := svc.Login(ctx, "pw")
			So(errors.Is(err, types.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.VerifyTreasurer("x"), types.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When no password is configured", func() {
			svc := started()
			_, err := svc.Login(ctx, "pw")
			So(errors.Is(err, auth.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("When it is started", func() {
			svc := started(service.WithTreasurer("secret", time.Hour, "cassa"))

			Convey("Then the wrong password is refused", func() {
				_, err := svc.Login(ctx, "nope")
				So(errors.Is(err, auth.ErrInvalidPassword), ShouldBeTrue)
			})

			Convey("Then the right password yields a verifiable token", func() {
				sess, err := svc.Login(ctx, "cassa")
				So(err, ShouldBeNil)
				So(sess.ExpiresAt, ShouldHappenAfter, time.Now())
				So(svc.VerifyTreasurer(sess.Token), ShouldBeNil)
				So(errors.Is(svc.VerifyTreasurer(sess.Token+"x"), auth.ErrInvalidToken), ShouldBeTrue)
			})
		})
	})
}

func TestService_Payments(t *testing.T) {
	Convey("Given a roster", t, func() {
		ctx := context.Background()
		svc := started()
		setRoster(svc, []string{"Cara", "Anna"}, []string{"Bob", "anna"})

		Convey("Then every participant has an unpaid record", func() {
			v := svc.Payments(ctx, "")
			So(v.Total, ShouldEqual, 3)
			So(v.Paid, ShouldEqual, 0)
			So(v.Unpaid, ShouldEqual, 3)
			So(v.Payments[0].Person, ShouldEqual, "Anna")
			So(v.Payments[2].Person, ShouldEqual, "Cara")
		})

		Convey("When Bob pays", func() {
			amount := 25.0
			p, err := svc.TogglePayment(ctx, "bob", &amount)
			So(err, ShouldBeNil)
			So(p.HasPaid, ShouldBeTrue)
			So(p.PaidAt, ShouldNotBeNil)
			So(*p.Amount, ShouldEqual, 25.0)

			Convey("Then the counts and search reflect it", func() {
				v := svc.Payments(ctx, "O")
				So(v.Paid, ShouldEqual, 1)
				So(v.Unpaid, ShouldEqual, 2)
				So(v.Payments, ShouldHaveLength, 1)
				So(v.Payments[0].Person, ShouldEqual, "Bob")
			})

			Convey("Then toggling again clears the payment", func() {
				p, err := svc.TogglePayment(ctx, "Bob", nil)
				So(err, ShouldBeNil)
				So(p.HasPaid, ShouldBeFalse)
				So(p.PaidAt, ShouldBeNil)
				So(p.Amount, ShouldBeNil)
			})

			Convey("Then removing Bob from the roster keeps the record of Bob", func() {
				setRoster(svc, []string{"Anna"}, nil)
				v := svc.Payments(ctx, "")
				So(v.Total, ShouldEqual, 3)
				So(v.Paid, ShouldEqual, 1)
			})
		})

		Convey("When an unknown person is toggled", func() {
			_, err := svc.TogglePayment(ctx, "Zed", nil)
			So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			neg := -1.0
			_, err = svc.TogglePayment(ctx, "Anna", &neg)
			So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestService_Timers(t *testing.T) {
	Convey("Given a started service with a scheduled meeting", t, func() {
		ctx := context.Background()
		svc := started(service.WithMaxTimers(2), service.WithTimerDefault(10*time.Minute))
		m, err := svc.CreateMeeting(ctx, "Anna", "Bob", model.Round1, "")
		So(err, ShouldBeNil)

		Convey("When a timer is bound to the meeting", func() {
			snap, err := svc.CreateTimer(ctx, m.ID, 0)
			So(err, ShouldBeNil)

			Convey("Then the speakers are the participants", func() {
				So(snap.DurationSeconds, ShouldEqual, 600)
				So(snap.SpeakerA, ShouldEqual, "Anna")
				So(snap.SpeakerB, ShouldEqual, "Bob")
				So(snap.State, ShouldEqual, timer.StateIdle)
			})

			Convey("Then it can be configured and controlled", func() {
				snap, err := svc.SetTimerDuration(snap.ID, 4)
				So(err, ShouldBeNil)
				So(snap.DurationSeconds, ShouldEqual, 240)

				snap, err = svc.StartTimer(snap.ID)
				So(err, ShouldBeNil)
				So(snap.State, ShouldEqual, timer.StateRunning)

				_, err = svc.SetTimerDuration(snap.ID, 5)
				So(errors.Is(err, timer.ErrNotIdle), ShouldBeTrue)

				snap, err = svc.PauseTimer(snap.ID)
				So(err, ShouldBeNil)
				So(snap.State, ShouldEqual, timer.StatePaused)

				_, err = svc.PauseTimer(snap.ID)
				So(errors.Is(err, timer.ErrNotRunning), ShouldBeTrue)

				snap, err = svc.ResetTimer(snap.ID)
				So(err, ShouldBeNil)
				So(snap.State, ShouldEqual, timer.StateIdle)
			})

			Convey("Then checklist items toggle", func() {
				snap, err := svc.ToggleChecklist(snap.ID, timer.ItemIdealClient)
				So(err, ShouldBeNil)
				So(snap.Checklist[timer.ItemIdealClient], ShouldBeTrue)
				_, err = svc.ToggleChecklist(snap.ID, "nope")
				So(errors.Is(err, timer.ErrUnknownItem), ShouldBeTrue)
			})

			Convey("Then deleting forgets it", func() {
				So(svc.DeleteTimer(snap.ID), ShouldBeNil)
				_, err := svc.Timer(snap.ID)
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.DeleteTimer(snap.ID), types.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When timers are created with bad input", func() {
			_, err := svc.CreateTimer(ctx, "missing", 0)
			So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			_, err = svc.CreateTimer(ctx, "", 241)
			So(errors.Is(err, timer.ErrInvalidDuration), ShouldBeTrue)
		})

		Convey("When more timers than allowed are created", func() {
			_, err := svc.CreateTimer(ctx, "", 1)
			So(err, ShouldBeNil)
			_, err = svc.CreateTimer(ctx, "", 1)
			So(err, ShouldBeNil)
			_, err = svc.CreateTimer(ctx, "", 1)
			So(errors.Is(err, timer.ErrTooManyTimers), ShouldBeTrue)
		})

		Convey("When the tone is requested", func() {
			var buf bytes.Buffer
			So(svc.ToneWAV(&buf), ShouldBeNil)
			So(buf.String()[:4], ShouldEqual, "RIFF")
		})
	})
}

// downStore accepts reads but refuses every write.
type downStore struct{ blob.Store }

func (downStore) Put(context.Context, string, string, []byte, blob.Condition) (string, error) {
	return "", blob.ErrTransport
}

func TestService_StorageFailures(t *testing.T) {
	Convey("Given a store that refuses writes", t, func() {
		ctx := context.Background()
		svc := started(service.WithStore(downStore{blob.NewMemory()}, "down"))

		Convey("Then reads fall back to defaults", func() {
			So(svc.EventInfo(ctx).Title, ShouldEqual, "Incontri 1-a-1")
			So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldBeEmpty)
		})

		Convey("Then writes report the storage as unavailable", func() {
			_, err := svc.CreateMeeting(ctx, "Anna", "Bob", model.Round1, "k")
			So(errors.Is(err, types.ErrStorageUnavailable), ShouldBeTrue)
			_, err = svc.SetRoster(ctx, json.RawMessage(`["Anna"]`))
			So(errors.Is(err, types.ErrStorageUnavailable), ShouldBeTrue)
		})
	})
}

// shakyStore fails the next reads of one key.
type shakyStore struct {
	blob.Store
	key   string
	fails atomic.Int32
}

func (s *shakyStore) Get(ctx context.Context, container, key string) (blob.Object, error) {
	if key == s.key && s.fails.Add(-1) >= 0 {
		return blob.Object{}, blob.ErrTransport
	}
	return s.Store.Get(ctx, container, key)
}

func storedMeetings(store blob.Store) []string {
	obj, err := store.Get(context.Background(), "app-data", "meetings")
	So(err, ShouldBeNil)
	var list []model.Meeting
	So(json.Unmarshal(obj.Data, &list), ShouldBeNil)
	pairs := make([]string, 0, len(list))
	for _, m := range list {
		pairs = append(pairs, m.Person1+"-"+m.Person2)
	}
	return pairs
}

func TestService_SharedStore(t *testing.T) {
	Convey("Given two services over one store", t, func() {
		ctx := context.Background()
		mem := blob.NewMemory()
		a := started(service.WithStore(mem, "memory"))
		setRoster(a, []string{"Anna", "Bob", "Cara", "Dani"}, []string{"Eve", "Finn"})
		_, err := a.CreateMeeting(ctx, "Anna", "Bob", model.Round1, "")
		So(err, ShouldBeNil)
		_, err = a.CreateMeeting(ctx, "Cara", "Dani", model.Round1, "")
		So(err, ShouldBeNil)

		shaky := &shakyStore{Store: mem, key: "meetings"}
		b := started(service.WithStore(shaky, "memory"))

		Convey("When the second one cannot read the meetings before a create", func() {
			shaky.fails.Store(1)
			_, err := b.CreateMeeting(ctx, "Eve", "Finn", model.Round2, "")

			Convey("Then the create fails and the stored meetings are untouched", func() {
				So(errors.Is(err, types.ErrStorageUnavailable), ShouldBeTrue)
				So(storedMeetings(mem), ShouldResemble, []string{"Anna-Bob", "Cara-Dani"})
			})

			Convey("Then a retry appends to the stored meetings", func() {
				_, err := b.CreateMeeting(ctx, "Eve", "Finn", model.Round2, "")
				So(err, ShouldBeNil)
				So(storedMeetings(mem), ShouldResemble, []string{"Anna-Bob", "Cara-Dani", "Eve-Finn"})
				So(a.RefreshMeetings(ctx), ShouldHaveLength, 3)
			})
		})
	})

	Convey("Given a stored meeting list with a broken record", t, func() {
		ctx := context.Background()
		mem := blob.NewMemory()
		_, err := mem.Put(ctx, "app-data", "meetings", []byte(`[
			{"id":"m1","person1":"Anna","person2":"Bob","round":1,"createdAt":"2024-01-01T00:00:00Z"},
			{"id":"m2","person1":"Cara","person2":"Dani","round":1,"createdAt":""}
		]`), blob.Condition{})
		So(err, ShouldBeNil)
		svc := started(service.WithStore(mem, "memory"))
		setRoster(svc, []string{"Anna", "Bob", "Cara", "Dani", "Eve", "Finn"}, nil)

		Convey("When a meeting is created", func() {
			_, err := svc.CreateMeeting(ctx, "Eve", "Finn", model.Round1, "")

			Convey("Then the readable meetings are kept", func() {
				So(err, ShouldBeNil)
				So(storedMeetings(mem), ShouldResemble, []string{"Anna-Bob", "Eve-Finn"})
			})
		})
	})

	Convey("Given a stored meeting document that is not a list", t, func() {
		ctx := context.Background()
		mem := blob.NewMemory()
		_, err := mem.Put(ctx, "app-data", "meetings", []byte(`"corrupt"`), blob.Condition{})
		So(err, ShouldBeNil)
		svc := started(service.WithStore(mem, "memory"))
		setRoster(svc, []string{"Eve", "Finn"}, nil)

		Convey("When a meeting is created", func() {
			_, err := svc.CreateMeeting(ctx, "Eve", "Finn", model.Round1, "")

			Convey("Then the write is refused and the document is left alone", func() {
				So(errors.Is(err, types.ErrStorageUnavailable), ShouldBeTrue)
				obj, gerr := mem.Get(ctx, "app-data", "meetings")
				So(gerr, ShouldBeNil)
				So(string(obj.Data), ShouldEqual, `"corrupt"`)
			})
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given a service whose change queue is not drained", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()), service.WithQueueSize(1))

		Convey("When the first write fills the queue", func() {
			_, err := svc.CreateMeeting(ctx, "Anna", "Bob", model.Round1, "")
			So(err, ShouldBeNil)

			Convey("Then further writes are refused until it drains", func() {
				_, err := svc.CreateMeeting(ctx, "Cara", "Dani", model.Round1, "")
				So(errors.Is(err, types.ErrBackpressure), ShouldBeTrue)
				So(svc.Meetings(ctx, types.MeetingFilter{}), ShouldHaveLength, 1)
			})
		})
	})
}
