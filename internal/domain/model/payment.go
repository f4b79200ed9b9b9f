package model

import "time"

// Payment tracks whether a participant has paid. Records are toggled, never removed.
type Payment struct {
	Person  string     `json:"person"`
	HasPaid bool       `json:"hasPaid"`
	PaidAt  *time.Time `json:"paidAt,omitempty"`
	Amount  *float64   `json:"amount,omitempty"`
}

// PaymentList is the stored form of the payment records. Elements that do not
// decode are skipped.
type PaymentList []Payment

// UnmarshalJSON decodes the list element by element.
func (l *PaymentList) UnmarshalJSON(b []byte) error {
	items, err := decodeEach[Payment](b)
	if err != nil {
		return err
	}
	*l = items
	return nil
}

// EventInfo is the title block shown on every view and on the PDF export.
type EventInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}
