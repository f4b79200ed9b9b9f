package model

// Roster lists the participant names available in each round.
type Roster struct {
	Round1 []string `json:"round1"`
	Round2 []string `json:"round2"`
}

// ForRound returns the names listed for r, or nil for an invalid round.
func (r Roster) ForRound(round Round) []string {
	switch round {
	case Round1:
		return r.Round1
	case Round2:
		return r.Round2
	}
	return nil
}
