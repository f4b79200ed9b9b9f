// Package pairing holds the scheduling rules deciding who may meet whom.
//
// Every function is pure: no I/O, no panics, and nil or empty inputs yield
// empty results. Names compare after trimming and case folding. Meetings
// whose round tag is not 1 or 2 are ignored by round-scoped queries.
package pairing

import (
	"strings"

	"github.com/okian/onetoone/internal/domain/model"
)

// SamePerson reports whether a and b name the same participant.
func SamePerson(a, b string) bool {
	ka := model.NameKey(a)
	return ka != "" && ka == model.NameKey(b)
}

// PersonHasMeetingInRound reports whether person is on either side of a meeting in round.
func PersonHasMeetingInRound(person string, round model.Round, meetings []model.Meeting) bool {
	if !round.Valid() {
		return false
	}
	for _, m := range meetings {
		if m.Round == round && m.Involves(person) {
			return true
		}
	}
	return false
}

// AvailableParticipantsForRound filters roster to the names not yet in a meeting
// in round. Input order is kept and duplicates collapse to their first occurrence.
func AvailableParticipantsForRound(round model.Round, meetings []model.Meeting, roster []string) []string {
	out := []string{}
	if !round.Valid() {
		return out
	}
	busy := busyInRound(round, meetings)
	seen := make(map[string]struct{}, len(roster))
	for _, name := range roster {
		name = strings.TrimSpace(name)
		k := model.NameKey(name)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, taken := busy[k]; taken {
			continue
		}
		out = append(out, name)
	}
	return out
}

// EligiblePartners filters candidates to those person may be paired with in round:
// not person, not already met in any round, and not committed in round.
func EligiblePartners(person string, round model.Round, meetings []model.Meeting, candidates []string) []string {
	out := []string{}
	self := model.NameKey(person)
	if !round.Valid() || self == "" {
		return out
	}
	busy := busyInRound(round, meetings)
	met := make(map[string]struct{})
	for _, m := range meetings {
		if !m.Round.Valid() || !m.Involves(person) {
			continue
		}
		met[model.NameKey(PartnerFor(m, person))] = struct{}{}
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		k := model.NameKey(c)
		if k == "" || k == self {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := met[k]; ok {
			continue
		}
		if _, ok := busy[k]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// MeetingExists reports whether a and b meet in round, in either order.
func MeetingExists(meetings []model.Meeting, a, b string, round model.Round) bool {
	if !round.Valid() {
		return false
	}
	for _, m := range meetings {
		if m.Round == round && samePair(m, a, b) {
			return true
		}
	}
	return false
}

// MeetingExistsAnyRound reports whether a and b meet in either round.
func MeetingExistsAnyRound(meetings []model.Meeting, a, b string) bool {
	for _, m := range meetings {
		if m.Round.Valid() && samePair(m, a, b) {
			return true
		}
	}
	return false
}

// MeetingsInRound returns the meetings tagged with round.
func MeetingsInRound(meetings []model.Meeting, round model.Round) []model.Meeting {
	out := []model.Meeting{}
	if !round.Valid() {
		return out
	}
	for _, m := range meetings {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// MeetingsForPerson returns every meeting person takes part in.
func MeetingsForPerson(meetings []model.Meeting, person string) []model.Meeting {
	out := []model.Meeting{}
	for _, m := range meetings {
		if m.Involves(person) {
			out = append(out, m)
		}
	}
	return out
}

// PartnerFor returns the other side of m. When person is not Person1, Person1 is returned.
func PartnerFor(m model.Meeting, person string) string {
	if SamePerson(m.Person1, person) {
		return m.Person2
	}
	return m.Person1
}

// ValidateNewMeeting checks that a meeting between a and b in round may be added to meetings.
func ValidateNewMeeting(meetings []model.Meeting, a, b string, round model.Round) error {
	switch {
	case !round.Valid():
		return ErrInvalidRound
	case model.NameKey(a) == "" || model.NameKey(b) == "":
		return ErrMissingPerson
	case SamePerson(a, b):
		return ErrSamePerson
	case MeetingExists(meetings, a, b, round):
		return ErrAlreadyScheduled
	case PersonHasMeetingInRound(a, round, meetings):
		return ErrPersonBusy
	case PersonHasMeetingInRound(b, round, meetings):
		return ErrPartnerBusy
	case MeetingExistsAnyRound(meetings, a, b):
		return ErrAlreadyMet
	}
	return nil
}

func busyInRound(round model.Round, meetings []model.Meeting) map[string]struct{} {
	busy := make(map[string]struct{})
	for _, m := range meetings {
		if m.Round != round {
			continue
		}
		busy[model.NameKey(m.Person1)] = struct{}{}
		busy[model.NameKey(m.Person2)] = struct{}{}
	}
	return busy
}

func samePair(m model.Meeting, a, b string) bool {
	return (SamePerson(m.Person1, a) && SamePerson(m.Person2, b)) ||
		(SamePerson(m.Person1, b) && SamePerson(m.Person2, a))
}
