package report

import "time"

// Option configures Render.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for the footer date.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
