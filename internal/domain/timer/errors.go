package timer

import "errors"

var (
	ErrExpired         = errors.New("timer expired, reset it first")
	ErrNotIdle         = errors.New("duration can only change before the timer starts")
	ErrNotRunning      = errors.New("timer is not running")
	ErrInvalidDuration = errors.New("duration must be a whole number of minutes between 1 and 240")
	ErrUnknownItem     = errors.New("unknown checklist item")
	ErrTooManyTimers   = errors.New("too many timers")
)
