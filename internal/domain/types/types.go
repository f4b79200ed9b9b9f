// Package types contains the read models shared by the service and the HTTP API.
package types

import (
	"time"

	"github.com/okian/onetoone/internal/domain/model"
)

// RosterView is the normalized roster plus the union of both rounds.
type RosterView struct {
	Round1 []string `json:"round1"`
	Round2 []string `json:"round2"`
	All    []string `json:"all"`
}

// MeetingFilter narrows a meeting listing. Zero values match everything.
type MeetingFilter struct {
	Round  model.Round
	Person string
}

// RoundAvailability is the availability panel of one round.
type RoundAvailability struct {
	Round          model.Round `json:"round"`
	Participants   []string    `json:"participants"`
	Available      []string    `json:"available"`
	Total          int         `json:"total"`
	AvailableCount int         `json:"availableCount"`
	Meetings       int         `json:"meetings"`
}

// Eligibility lists who person may still meet in round.
type Eligibility struct {
	Person     string      `json:"person"`
	Round      model.Round `json:"round"`
	HasMeeting bool        `json:"hasMeeting"`
	Partners   []string    `json:"partners"`
}

// RoundSummary holds the meetings of one round.
type RoundSummary struct {
	Round    model.Round     `json:"round"`
	Meetings []model.Meeting `json:"meetings"`
	Count    int             `json:"count"`
}

// PersonRound is what a person does in one round.
type PersonRound struct {
	Round     model.Round `json:"round"`
	Partner   string      `json:"partner,omitempty"`
	MeetingID string      `json:"meetingId,omitempty"`
}

// PersonSummary is the per-person schedule.
type PersonSummary struct {
	Person string        `json:"person"`
	Rounds []PersonRound `json:"rounds"`
}

// Overview aggregates the headline numbers of the event.
type Overview struct {
	Event        model.EventInfo     `json:"event"`
	Participants int                 `json:"participants"`
	Meetings     int                 `json:"meetings"`
	ByRound      map[model.Round]int `json:"byRound"`
	Attendees    int                 `json:"attendees"`
	Paid         int                 `json:"paid"`
	Unpaid       int                 `json:"unpaid"`
}

// PaymentsView is the payment tracker: the matching records and counts over all records.
type PaymentsView struct {
	Payments []model.Payment `json:"payments"`
	Total    int             `json:"total"`
	Paid     int             `json:"paid"`
	Unpaid   int             `json:"unpaid"`
}

// Session is an issued treasurer token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
