package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Meeting is a scheduled one-to-one between two participants in one round.
// (Person1, Person2) and (Person2, Person1) denote the same pairing.
type Meeting struct {
	ID        string    `json:"id"`
	Person1   string    `json:"person1"`
	Person2   string    `json:"person2"`
	Round     Round     `json:"round"`
	CreatedAt time.Time `json:"createdAt"`
}

// NameKey is the comparison form of a participant name: trimmed and case folded.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Involves reports whether person is on either side of the meeting.
func (m Meeting) Involves(person string) bool {
	k := NameKey(person)
	return k != "" && (NameKey(m.Person1) == k || NameKey(m.Person2) == k)
}

// MeetingList is the stored form of the shared meeting list.
type MeetingList []Meeting

type versionedMeetings struct {
	Version  int               `json:"version"`
	Meetings []json.RawMessage `json:"meetings"`
}

// UnmarshalJSON accepts a bare array or the older {"version":N,"meetings":[...]} envelope.
// Elements that do not decode are skipped.
func (l *MeetingList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env versionedMeetings
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return err
		}
		*l = decodeElements[Meeting](env.Meetings)
		return nil
	}
	items, err := decodeEach[Meeting](trimmed)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// AttendeeMeetingList is the stored form of the attendee meetings. Elements
// that do not decode are skipped.
type AttendeeMeetingList []AttendeeMeeting

// UnmarshalJSON decodes the list element by element.
func (l *AttendeeMeetingList) UnmarshalJSON(b []byte) error {
	items, err := decodeEach[AttendeeMeeting](b)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// AttendeeMeeting is a meeting between two signed-in attendees, keyed by user id.
type AttendeeMeeting struct {
	ID           string    `json:"id"`
	UserID1      string    `json:"userId1"`
	UserID2      string    `json:"userId2"`
	DisplayName1 string    `json:"displayName1"`
	DisplayName2 string    `json:"displayName2"`
	Round        Round     `json:"round"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Involves reports whether userID is on either side of the meeting.
func (m AttendeeMeeting) Involves(userID string) bool {
	return userID != "" && (m.UserID1 == userID || m.UserID2 == userID)
}
