package profile

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of one refresh invocation.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateSucceeded State = "succeeded"
	StateExpired   State = "expired"
	StateFailed    State = "failed"
	StateRetrying  State = "retrying"
	StateAbandoned State = "abandoned"
)

// ErrIllegalTransition is returned when a state change is not allowed.
var ErrIllegalTransition = errors.New("illegal state transition")

// transitions lists the allowed successors of every state.
// The idle to expired edge covers a missing credential.
var transitions = map[State][]State{
	StateIdle:     {StateFetching, StateExpired, StateFailed, StateAbandoned},
	StateFetching: {StateSucceeded, StateExpired, StateFailed, StateAbandoned},
	StateFailed:   {StateRetrying},
	StateRetrying: {StateAbandoned},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Machine tracks the state of one refresh invocation.
// It is not safe for concurrent use.
type Machine struct {
	state   State
	history []State
}

// NewMachine returns a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle, history: []State{StateIdle}}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// History returns every state visited, in order.
func (m *Machine) History() []State {
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves the machine to next or returns ErrIllegalTransition.
func (m *Machine) Transition(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
}

// must applies a transition the refresher guarantees to be legal.
func (m *Machine) must(next State) {
	if err := m.Transition(next); err != nil {
		panic(err)
	}
}
