package pairing_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	model "github.com/okian/onetoone/internal/domain/model"
	pairing "github.com/okian/onetoone/internal/domain/pairing"
	. "github.com/smartystreets/goconvey/convey"
)

func meeting(a, b string, round model.Round) model.Meeting {
	return model.Meeting{
		ID:        fmt.Sprintf("%s-%s-%d", a, b, round),
		Person1:   a,
		Person2:   b,
		Round:     round,
		CreatedAt: time.Now(),
	}
}

func TestPersonHasMeetingInRound(t *testing.T) {
	Convey("Given a meeting between Anna and Bob in round 1", t, func() {
		meetings := []model.Meeting{meeting("Anna", "Bob", model.Round1)}

		Convey("Then both sides are busy in round 1 only", func() {
			So(pairing.PersonHasMeetingInRound("Anna", model.Round1, meetings), ShouldBeTrue)
			So(pairing.PersonHasMeetingInRound("Bob", model.Round1, meetings), ShouldBeTrue)
			So(pairing.PersonHasMeetingInRound("Anna", model.Round2, meetings), ShouldBeFalse)
		})

		Convey("Then casing and whitespace do not matter", func() {
			for _, name := range []string{"Anna", "ANNA", " anna "} {
				So(pairing.PersonHasMeetingInRound(name, model.Round1, meetings), ShouldBeTrue)
			}
			So(pairing.MeetingsForPerson(meetings, "BOB"), ShouldHaveLength, 1)
		})

		Convey("Then an invalid round matches nothing", func() {
			So(pairing.PersonHasMeetingInRound("Anna", model.RoundNone, meetings), ShouldBeFalse)
		})
	})

	Convey("Given a meeting stored with an unparseable round", t, func() {
		meetings := []model.Meeting{meeting("Cara", "Dani", model.RoundNone)}

		Convey("Then it is excluded from round-scoped queries", func() {
			So(pairing.PersonHasMeetingInRound("Cara", model.Round1, meetings), ShouldBeFalse)
			So(pairing.MeetingsInRound(meetings, model.Round1), ShouldBeEmpty)
			So(pairing.AvailableParticipantsForRound(model.Round1, meetings, []string{"Cara"}), ShouldResemble, []string{"Cara"})
			So(pairing.MeetingExistsAnyRound(meetings, "Cara", "Dani"), ShouldBeFalse)
		})
	})

	Convey("Given nil inputs", t, func() {
		So(pairing.PersonHasMeetingInRound("Anna", model.Round1, nil), ShouldBeFalse)
		So(pairing.AvailableParticipantsForRound(model.Round1, nil, nil), ShouldBeEmpty)
		So(pairing.EligiblePartners("Anna", model.Round1, nil, nil), ShouldBeEmpty)
		So(pairing.MeetingsInRound(nil, model.Round2), ShouldBeEmpty)
	})
}

func TestAvailableParticipantsForRound(t *testing.T) {
	Convey("Given meetings across both rounds", t, func() {
		meetings := []model.Meeting{
			meeting("Anna", "Bob", model.Round1),
			meeting("Cara", "Dani", model.Round2),
		}

		Convey("When computing availability for round 1", func() {
			got := pairing.AvailableParticipantsForRound(model.Round1, meetings, []string{"Anna", "Bob", "Cara"})

			Convey("Then only participants without a round 1 meeting remain", func() {
				So(got, ShouldResemble, []string{"Cara"})
			})
		})

		Convey("When the roster repeats names with different casing", func() {
			got := pairing.AvailableParticipantsForRound(model.Round1, meetings, []string{"ANNA", " anna ", "Bob", "Cara", " cara", "Eva "})

			Convey("Then duplicates collapse to their first trimmed occurrence", func() {
				So(got, ShouldResemble, []string{"Cara", "Eva"})
			})
		})

		Convey("Then no returned participant appears in a round meeting", func() {
			roster := []string{"Anna", "Bob", "Cara", "Dani", "Eva"}
			for _, r := range model.AllRounds() {
				for _, name := range pairing.AvailableParticipantsForRound(r, meetings, roster) {
					So(pairing.PersonHasMeetingInRound(name, r, meetings), ShouldBeFalse)
				}
			}
		})
	})
}

func TestEligiblePartners(t *testing.T) {
	Convey("Given the end-to-end scheduling example", t, func() {
		meetings := []model.Meeting{meeting("Anna", "Bob", model.Round1)}
		roster := []string{"Anna", "Bob", "Cara"}

		So(pairing.AvailableParticipantsForRound(model.Round1, meetings, roster), ShouldResemble, []string{"Cara"})

		Convey("When Anna and Cara meet in round 2", func() {
			meetings = append(meetings, meeting("Anna", "Cara", model.Round2))
			got := pairing.EligiblePartners("Anna", model.Round1, meetings, []string{"Bob", "Cara", "Dani"})

			Convey("Then only Dani is eligible for Anna in round 1", func() {
				So(got, ShouldResemble, []string{"Dani"})
			})
		})
	})

	Convey("Given every round 1 slot is taken or already met", t, func() {
		meetings := []model.Meeting{
			meeting("Anna", "Bob", model.Round1),
			meeting("Cara", "Dani", model.Round1),
			meeting("Anna", "Cara", model.Round2),
		}

		Convey("Then Anna has no eligible partners", func() {
			So(pairing.EligiblePartners("Anna", model.Round1, meetings, []string{"Anna", "Bob", "Cara", "Dani"}), ShouldBeEmpty)
		})
	})

	Convey("Given a free partner in the round", t, func() {
		meetings := []model.Meeting{meeting("Anna", "Bob", model.Round1)}

		Convey("Then the partner is returned and the person never is", func() {
			got := pairing.EligiblePartners(" anna", model.Round1, meetings, []string{"Anna", "Bob", "Cara", "cara"})
			So(got, ShouldResemble, []string{"Cara"})
		})
	})

	Convey("Given an invalid round or empty person", t, func() {
		So(pairing.EligiblePartners("Anna", model.RoundNone, nil, []string{"Bob"}), ShouldBeEmpty)
		So(pairing.EligiblePartners("  ", model.Round1, nil, []string{"Bob"}), ShouldBeEmpty)
	})
}

func TestMeetingExists(t *testing.T) {
	Convey("Given meetings in both rounds", t, func() {
		meetings := []model.Meeting{
			meeting("Anna", "Bob", model.Round1),
			meeting("Anna", "Cara", model.Round2),
			meeting("Dani", "Eva", model.Round1),
		}

		Convey("Then existence is symmetric", func() {
			pairs := [][2]string{{"Anna", "Bob"}, {"bob", "ANNA"}, {"Anna", "Cara"}, {"Eva", "Anna"}}
			for _, p := range pairs {
				for _, r := range model.AllRounds() {
					So(pairing.MeetingExists(meetings, p[0], p[1], r), ShouldEqual, pairing.MeetingExists(meetings, p[1], p[0], r))
				}
			}
			So(pairing.MeetingExists(meetings, "Bob", "Anna", model.Round1), ShouldBeTrue)
			So(pairing.MeetingExists(meetings, "Bob", "Anna", model.Round2), ShouldBeFalse)
			So(pairing.MeetingExistsAnyRound(meetings, "cara", "anna"), ShouldBeTrue)
		})

		Convey("Then round and person filters work", func() {
			So(pairing.MeetingsInRound(meetings, model.Round1), ShouldHaveLength, 2)
			So(pairing.MeetingsForPerson(meetings, "Anna"), ShouldHaveLength, 2)
		})

		Convey("Then the partner is the other side", func() {
			So(pairing.PartnerFor(meetings[0], "anna"), ShouldEqual, "Bob")
			So(pairing.PartnerFor(meetings[0], "Bob"), ShouldEqual, "Anna")
			So(pairing.PartnerFor(meetings[0], "Zoe"), ShouldEqual, "Anna")
		})
	})
}

func TestValidateNewMeeting(t *testing.T) {
	Convey("Given an existing schedule", t, func() {
		meetings := []model.Meeting{
			meeting("Anna", "Bob", model.Round1),
			meeting("Cara", "Dani", model.Round2),
		}

		cases := []struct {
			name  string
			a, b  string
			round model.Round
			want  error
			code  string
		}{
			{"invalid round", "Eva", "Fabio", model.RoundNone, pairing.ErrInvalidRound, ""},
			{"missing name", "Eva", " ", model.Round1, pairing.ErrMissingPerson, ""},
			{"same person", "Eva", " eva ", model.Round1, pairing.ErrSamePerson, "same_person"},
			{"duplicate", "bob", "Anna", model.Round1, pairing.ErrAlreadyScheduled, "already_scheduled"},
			{"person busy", "Anna", "Eva", model.Round1, pairing.ErrPersonBusy, "person_busy"},
			{"partner busy", "Eva", "Bob", model.Round1, pairing.ErrPartnerBusy, "partner_busy"},
			{"already met", "Dani", "Cara", model.Round1, pairing.ErrAlreadyMet, "already_met"},
		}

		for _, tc := range cases {
			Convey("When adding a meeting with "+tc.name, func() {
				err := pairing.ValidateNewMeeting(meetings, tc.a, tc.b, tc.round)

				Convey("Then the matching rule error is returned", func() {
					So(errors.Is(err, tc.want), ShouldBeTrue)
					code, ok := pairing.RuleCode(err)
					So(ok, ShouldEqual, tc.code != "")
					So(code, ShouldEqual, tc.code)
				})
			})
		}

		Convey("When adding a meeting with two free participants", func() {
			Convey("Then no error is returned", func() {
				So(pairing.ValidateNewMeeting(meetings, "Anna", "Eva", model.Round2), ShouldBeNil)
			})
		})
	})

	Convey("Given an unrelated error", t, func() {
		_, ok := pairing.RuleCode(errors.New("boom"))
		So(ok, ShouldBeFalse)
		_, ok = pairing.RuleCode(fmt.Errorf("wrapped: %w", pairing.ErrNotOnRoster))
		So(ok, ShouldBeTrue)
	})
}
