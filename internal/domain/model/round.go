// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Round is one of the two scheduling slots. RoundNone marks a tag that could
// not be normalized; such meetings are kept but excluded from round queries.
type Round int

const (
	RoundNone Round = 0
	Round1    Round = 1
	Round2    Round = 2
)

// AllRounds returns the scheduling rounds in order.
func AllRounds() []Round {
	return []Round{Round1, Round2}
}

// Valid reports whether r is Round1 or Round2.
func (r Round) Valid() bool {
	return r == Round1 || r == Round2
}

func (r Round) String() string {
	if !r.Valid() {
		return "none"
	}
	return strconv.Itoa(int(r))
}

// ParseRound normalizes numeric and numeric-string encodings of a round.
// Anything else yields (RoundNone, false).
func ParseRound(v any) (Round, bool) {
	switch t := v.(type) {
	case Round:
		return checked(int64(t))
	case int:
		return checked(int64(t))
	case int64:
		return checked(t)
	case float64:
		if t != math.Trunc(t) {
			return RoundNone, false
		}
		return checked(int64(t))
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return RoundNone, false
		}
		return checked(n)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return RoundNone, false
		}
		return checked(n)
	}
	return RoundNone, false
}

func checked(n int64) (Round, bool) {
	r := Round(n)
	if !r.Valid() {
		return RoundNone, false
	}
	return r, true
}

// UnmarshalJSON accepts 1, 2, "1" and "2". Other values decode to RoundNone
// without error so documents carrying a bad tag still load.
func (r *Round) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r, _ = ParseRound(raw)
	return nil
}

// MarshalJSON writes valid rounds as numbers and RoundNone as null. The
// original tag of a RoundNone meeting is not kept: the next write of its list
// stores null in its place.
func (r Round) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}
