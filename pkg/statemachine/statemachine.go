package statemachine

import (
	"context"
	"fmt"
)

// State represents a state in the state machine.
type State interface {
	Name() string
}

// Event represents an event that can trigger a state transition.
type Event interface {
	Name() string
}

// Action executes side effects during state transitions. Returning an error prevents the transition.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard  // All must pass for transition to proceed
	Actions []Action // Executed in order before the new state is returned
}

// Table is an immutable transition table.
// The current state is owned by the caller (usually a persisted entity), so a single
// Table is shared by every entity of a kind and is safe for concurrent use.
// Lookups use the nested map [fromState][event][]Transition.
type Table struct {
	transitions map[string]map[string][]Transition
	terminal    map[string]struct{}
}

func newTable() *Table {
	return &Table{
		transitions: make(map[string]map[string][]Transition),
		terminal:    make(map[string]struct{}),
	}
}

func (t *Table) addTransition(from, to State, event Event, guards []Guard, actions []Action) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}
	if _, ok := t.terminal[from.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrTransitionFromTerminal, from.Name())
	}

	fromName := from.Name()
	if _, ok := t.transitions[fromName]; !ok {
		t.transitions[fromName] = make(map[string][]Transition)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[fromName][event.Name()] = append(t.transitions[fromName][event.Name()], Transition{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
	return nil
}

// Fire resolves the transition for event out of state from and returns the target state.
// Actions run before Fire returns; the first failing action aborts the transition.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}
	if t.IsTerminal(from) {
		return nil, NewErrTerminalState(from.Name(), event.Name())
	}

	transitions := t.transitions[from.Name()][event.Name()]
	if len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	// First transition with passing guards wins (enables priority ordering)
	next := t.firstAllowed(ctx, transitions, from, event, data)
	if next == nil {
		return nil, NewErrTransitionRejected(from.Name(), event.Name())
	}

	for _, action := range next.Actions {
		if err := action(ctx, from, next.To, event, data); err != nil {
			return nil, fmt.Errorf("action failed: %w", err)
		}
	}

	return next.To, nil
}

// CanFire reports whether event would be accepted from state without running actions.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil || t.IsTerminal(from) {
		return false
	}
	return t.firstAllowed(ctx, t.transitions[from.Name()][event.Name()], from, event, data) != nil
}

// IsTerminal reports whether no transition may ever leave the state.
func (t *Table) IsTerminal(s State) bool {
	if s == nil {
		return false
	}
	_, ok := t.terminal[s.Name()]
	return ok
}

func (t *Table) firstAllowed(ctx context.Context, transitions []Transition, from State, event Event, data any) *Transition {
	for i, tr := range transitions {
		allowed := true
		for _, guard := range tr.Guards {
			if !guard(ctx, from, event, data) {
				allowed = false
				break
			}
		}
		if allowed {
			return &transitions[i]
		}
	}
	return nil
}

// StringState provides a simple string-based state implementation for basic use cases.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent provides a simple string-based event implementation for basic use cases.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
