package pairing

import "github.com/okian/onetoone/internal/domain/model"

// AttendeeHasMeetingInRound reports whether userID is in a meeting in round.
func AttendeeHasMeetingInRound(userID string, round model.Round, meetings []model.AttendeeMeeting) bool {
	if !round.Valid() {
		return false
	}
	for _, m := range meetings {
		if m.Round == round && m.Involves(userID) {
			return true
		}
	}
	return false
}

// EligibleAttendees returns the attendees userID may be paired with in round.
func EligibleAttendees(userID string, round model.Round, meetings []model.AttendeeMeeting, attendees []model.Attendee) []model.Attendee {
	out := []model.Attendee{}
	if !round.Valid() || userID == "" {
		return out
	}
	busy := make(map[string]struct{})
	met := make(map[string]struct{})
	for _, m := range meetings {
		if !m.Round.Valid() {
			continue
		}
		if m.Round == round {
			busy[m.UserID1] = struct{}{}
			busy[m.UserID2] = struct{}{}
		}
		if m.Involves(userID) {
			id, _ := AttendeePartnerFor(m, userID)
			met[id] = struct{}{}
		}
	}
	for _, a := range attendees {
		if a.UserID == "" || a.UserID == userID {
			continue
		}
		if _, ok := busy[a.UserID]; ok {
			continue
		}
		if _, ok := met[a.UserID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AttendeeMeetingExists reports whether a and b meet in round, in either order.
func AttendeeMeetingExists(meetings []model.AttendeeMeeting, a, b string, round model.Round) bool {
	for _, m := range meetings {
		if round.Valid() && m.Round == round && sameAttendeePair(m, a, b) {
			return true
		}
	}
	return false
}

// AttendeeMeetingExistsAnyRound reports whether a and b meet in either round.
func AttendeeMeetingExistsAnyRound(meetings []model.AttendeeMeeting, a, b string) bool {
	for _, m := range meetings {
		if m.Round.Valid() && sameAttendeePair(m, a, b) {
			return true
		}
	}
	return false
}

// AttendeeMeetingsForUser returns every meeting userID takes part in.
func AttendeeMeetingsForUser(meetings []model.AttendeeMeeting, userID string) []model.AttendeeMeeting {
	out := []model.AttendeeMeeting{}
	for _, m := range meetings {
		if m.Involves(userID) {
			out = append(out, m)
		}
	}
	return out
}

// AttendeePartnerFor returns the user id and display name on the other side of m.
func AttendeePartnerFor(m model.AttendeeMeeting, userID string) (string, string) {
	if m.UserID1 == userID {
		return m.UserID2, m.DisplayName2
	}
	return m.UserID1, m.DisplayName1
}

// RemoveAttendeeMeetings drops every meeting userID takes part in.
func RemoveAttendeeMeetings(meetings []model.AttendeeMeeting, userID string) []model.AttendeeMeeting {
	out := make([]model.AttendeeMeeting, 0, len(meetings))
	for _, m := range meetings {
		if !m.Involves(userID) {
			out = append(out, m)
		}
	}
	return out
}

// ValidateNewAttendeeMeeting mirrors ValidateNewMeeting on user ids.
func ValidateNewAttendeeMeeting(meetings []model.AttendeeMeeting, a, b string, round model.Round) error {
	switch {
	case !round.Valid():
		return ErrInvalidRound
	case a == "" || b == "":
		return ErrMissingPerson
	case a == b:
		return ErrSamePerson
	case AttendeeMeetingExists(meetings, a, b, round):
		return ErrAlreadyScheduled
	case AttendeeHasMeetingInRound(a, round, meetings):
		return ErrPersonBusy
	case AttendeeHasMeetingInRound(b, round, meetings):
		return ErrPartnerBusy
	case AttendeeMeetingExistsAnyRound(meetings, a, b):
		return ErrAlreadyMet
	}
	return nil
}

func sameAttendeePair(m model.AttendeeMeeting, a, b string) bool {
	return (m.UserID1 == a && m.UserID2 == b) || (m.UserID1 == b && m.UserID2 == a)
}
