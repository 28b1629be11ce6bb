// Package resolution moves conflict records through their review lifecycle
// and keeps the owning application's status in step.
package resolution

import (
	"fmt"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/registry"
)

// Transition is an allowed status change.
type Transition struct {
	From registry.ConflictStatus
	To   registry.ConflictStatus
}

// DefaultTransitions are the moves an operator may make. Resolved is terminal
// apart from re-stamping an already resolved record.
var DefaultTransitions = []Transition{
	{From: registry.ConflictUnresolved, To: registry.ConflictResolved},
	{From: registry.ConflictResolved, To: registry.ConflictResolved},
}

// Machine validates conflict status transitions.
type Machine struct {
	transitions []Transition
}

// NewMachine creates a machine with the default transitions.
func NewMachine() *Machine {
	return &Machine{transitions: DefaultTransitions}
}

// Validate returns nil when from->to is allowed and a *TransitionError
// otherwise.
func (m *Machine) Validate(from, to registry.ConflictStatus) error {
	for _, t := range m.transitions {
		if t.From == from && t.To == to {
			return nil
		}
	}
	code := "CONFLICT_INVALID_TRANSITION"
	if from == registry.ConflictResolved {
		code = "CONFLICT_TRANSITION_DENIED"
	}
	return &TransitionError{
		Code:    code,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("conflict cannot move from %s to %s", orNone(from), orNone(to)),
	}
}

// Allowed returns the statuses reachable from from.
func (m *Machine) Allowed(from registry.ConflictStatus) []registry.ConflictStatus {
	var out []registry.ConflictStatus
	for _, t := range m.transitions {
		if t.From == from {
			out = append(out, t.To)
		}
	}
	return out
}

// TransitionError is a structured error for a rejected status change.
type TransitionError struct {
	Code    string                  `json:"code"`
	From    registry.ConflictStatus `json:"from"`
	To      registry.ConflictStatus `json:"to"`
	Message string                  `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}

func orNone(s registry.ConflictStatus) string {
	if s == "" {
		return "(none)"
	}
	return string(s)
}
