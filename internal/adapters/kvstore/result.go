package kvstore

// State of a cached key.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateCached
	// StateConflict holds while a rejected write is being resolved.
	StateConflict
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateCached:
		return "cached"
	case StateConflict:
		return "conflict"
	default:
		return "unloaded"
	}
}

// Outcome classifies a write.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeConflict means the write lost a race. Value holds the remote document.
	OutcomeConflict
	// OutcomeTransportFailure means nothing was written: the store could not be
	// reached or the stored value could not be read back. The cache is unchanged.
	OutcomeTransportFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeConflict:
		return "conflict"
	default:
		return "transport_failure"
	}
}

// Result is the explicit outcome of a write.
type Result[T any] struct {
	Outcome Outcome
	// Value is the written value on OK and the latest remote value on Conflict.
	Value   T
	Version string
	Err     error
}

// OK reports whether the write landed.
func (r Result[T]) OK() bool { return r.Outcome == OutcomeOK }
