package model

import (
	"encoding/json"
	"time"
)

// Change event kinds published on the stream.
const (
	ChangeMeetings     = "meetings.changed"
	ChangeSuperseded   = "document.superseded"
	ChangeParticipants = "participants.changed"
	ChangeEventInfo    = "event.changed"
	ChangePayments     = "payments.changed"
	ChangeAttendance   = "attendance.changed"
	ChangeTimerCue     = "timer.cue"
)

// ChangeEvent notifies subscribers that a stored document or timer changed.
type ChangeEvent struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Key     string          `json:"key,omitempty"`
	Version string          `json:"version,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
