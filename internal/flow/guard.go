package flow

import "errors"

// ErrInFlight is returned by Begin while a submission is outstanding
var ErrInFlight = errors.New("a submission is already in progress")

// State is the submission state of one form
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Guard tracks Idle -> Submitting -> {Succeeded, Failed} -> Idle for one form
// and refuses a second submission while the first is in flight.
// It is not synchronized: it lives in the UI model and is only touched from Update.
type Guard struct {
	state State
	last  State // outcome of the previous submission, StateIdle if none
}

// Begin moves to Submitting, or returns ErrInFlight
func (g *Guard) Begin() error {
	if g.state == StateSubmitting {
		return ErrInFlight
	}
	g.state = StateSubmitting
	return nil
}

// Finish records the outcome and returns the form to Idle
func (g *Guard) Finish(err error) State {
	outcome := StateSucceeded
	if err != nil {
		outcome = StateFailed
	}
	g.last = outcome
	g.state = StateIdle
	return outcome
}

// State returns the current state
func (g Guard) State() State { return g.state }

// Last returns the outcome of the most recent finished submission
func (g Guard) Last() State { return g.last }

// InFlight reports whether a submission is outstanding
func (g Guard) InFlight() bool { return g.state == StateSubmitting }
