// Package statemachine provides an immutable finite-state-machine transition table.
//
// The table does not hold a current state. Entities that live in a database carry
// their own state column; the table answers "given this state and this event, which
// state comes next" and runs guards and actions on the way. One table is built at
// startup and shared by every entity of that kind.
//
// # Usage
//
//	const (
//	    Draft    = statemachine.StringState("draft")
//	    InReview = statemachine.StringState("in_review")
//	    Archived = statemachine.StringState("archived")
//	    Submit   = statemachine.StringEvent("submit")
//	    Archive  = statemachine.StringEvent("archive")
//	)
//
//	table := statemachine.MustNew(
//	    statemachine.WithTerminal(Archived),
//	    statemachine.WithTransition(Draft, InReview, Submit),
//	    statemachine.WithTransition(InReview, Archived, Archive),
//	)
//
//	next, err := table.Fire(ctx, doc.State, Submit, nil)
//
// # Guards and Actions
//
// Guards veto a transition based on runtime data. When several transitions share
// the same state and event, the first one whose guards all pass wins. Actions run
// after guards succeed and before Fire returns; a failing action aborts the
// transition and the caller keeps its old state.
//
// # Error Handling
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* ... */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* ... */ }
//	if statemachine.IsTerminalStateError(err)        { /* ... */ }
package statemachine
