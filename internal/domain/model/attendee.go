package model

import "time"

// Attendee is a signed-in user who opted in to the event.
type Attendee struct {
	UserID      string    `json:"userId"`
	UserDetails string    `json:"userDetails,omitempty"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// AttendeeList is the stored form of the attendees. Elements that do not
// decode are skipped.
type AttendeeList []Attendee

// UnmarshalJSON decodes the list element by element.
func (l *AttendeeList) UnmarshalJSON(b []byte) error {
	items, err := decodeEach[Attendee](b)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// Principal is the identity supplied by the hosting platform.
type Principal struct {
	IdentityProvider string   `json:"identityProvider"`
	UserID           string   `json:"userId"`
	UserDetails      string   `json:"userDetails"`
	UserRoles        []string `json:"userRoles"`
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.UserRoles {
		if r == role {
			return true
		}
	}
	return false
}
