// Package roster converts stored participant lists into the per-round shape.
package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/okian/onetoone/internal/domain/model"
)

// ErrMalformed is returned by Parse when the input is neither a list nor a per-round object.
var ErrMalformed = errors.New("participants must be a list or an object with round1 and round2")

// Parse decodes raw as the canonical {"round1":[...],"round2":[...]} shape or a
// flat list, which is assigned to round 1. Null or empty input yields an empty roster.
func Parse(raw []byte) (model.Roster, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return empty(), nil
	}
	switch raw[0] {
	case '[':
		var flat []any
		if err := json.Unmarshal(raw, &flat); err != nil {
			return empty(), ErrMalformed
		}
		return model.Roster{Round1: names(flat), Round2: []string{}}, nil
	case '{':
		var byRound map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byRound); err != nil {
			return empty(), ErrMalformed
		}
		return model.Roster{Round1: side(byRound["round1"]), Round2: side(byRound["round2"])}, nil
	}
	return empty(), ErrMalformed
}

// Normalize is Parse without the error: anything unreadable becomes an empty roster.
func Normalize(raw []byte) model.Roster {
	r, _ := Parse(raw)
	return r
}

// AllParticipants returns the sorted union of both rounds. Names compare exactly.
func AllParticipants(r model.Roster) []string {
	set := make(map[string]struct{}, len(r.Round1)+len(r.Round2))
	for _, n := range r.Round1 {
		set[n] = struct{}{}
	}
	for _, n := range r.Round2 {
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParticipantsForRound returns a copy of the names listed for round.
func ParticipantsForRound(r model.Roster, round model.Round) []string {
	return append([]string{}, r.ForRound(round)...)
}

// OnRoster reports whether person is listed for round. An empty round list admits everyone.
func OnRoster(r model.Roster, round model.Round, person string) bool {
	list := r.ForRound(round)
	if len(list) == 0 {
		return true
	}
	k := model.NameKey(person)
	for _, n := range list {
		if model.NameKey(n) == k {
			return true
		}
	}
	return false
}

func side(raw json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	return names(items)
}

func names(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func empty() model.Roster {
	return model.Roster{Round1: []string{}, Round2: []string{}}
}
