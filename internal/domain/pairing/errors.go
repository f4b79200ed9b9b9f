package pairing

import "errors"

// Rule violations returned by ValidateNewMeeting and ValidateNewAttendeeMeeting.
var (
	ErrInvalidRound     = errors.New("round must be 1 or 2")
	ErrMissingPerson    = errors.New("both participants are required")
	ErrSamePerson       = errors.New("a participant cannot meet themselves")
	ErrAlreadyScheduled = errors.New("meeting already scheduled in this round")
	ErrPersonBusy       = errors.New("participant already has a meeting in this round")
	ErrPartnerBusy      = errors.New("partner already has a meeting in this round")
	ErrAlreadyMet       = errors.New("participants already meet in another round")
	ErrNotOnRoster      = errors.New("participant is not on the roster for this round")
)

var ruleCodes = map[error]string{
	ErrSamePerson:       "same_person",
	ErrAlreadyScheduled: "already_scheduled",
	ErrPersonBusy:       "person_busy",
	ErrPartnerBusy:      "partner_busy",
	ErrAlreadyMet:       "already_met",
	ErrNotOnRoster:      "not_on_roster",
}

// RuleCode returns the stable code of a scheduling rule violation wrapped in err.
// Input errors (ErrInvalidRound, ErrMissingPerson) are not rule violations.
func RuleCode(err error) (string, bool) {
	for sentinel, code := range ruleCodes {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return "", false
}
