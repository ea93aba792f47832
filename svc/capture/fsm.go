package capture

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/fitcapture/pkg/statemachine"
)

// Lifecycle events.
const (
	EventProcess  = statemachine.StringEvent("process")
	EventComplete = statemachine.StringEvent("complete")
	EventFail     = statemachine.StringEvent("fail")
	EventExpire   = statemachine.StringEvent("expire")
)

// step is the data every lifecycle transition is fired with.
type step struct {
	session *Session
	at      time.Time
}

func windowOpen(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	st, ok := data.(step)
	return ok && !st.session.ExpiredAt(st.at)
}

func windowClosed(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	st, ok := data.(step)
	return ok && st.session.ExpiredAt(st.at)
}

func stamp(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	if st, ok := data.(step); ok {
		st.session.UpdatedAt = st.at
	}
	return nil
}

// lifecycle is shared by every session; the current state lives on the record.
//
// processing is reserved for an asynchronous intake pipeline. It expires like
// pending but Submit never accepts it.
var lifecycle = statemachine.MustNew(
	statemachine.WithTerminal(StatusCompleted, StatusFailed, StatusExpired),

	statemachine.WithTransition(StatusPending, StatusProcessing, EventProcess,
		statemachine.WithGuard(windowOpen), statemachine.WithAction(stamp)),
	statemachine.WithTransition(StatusPending, StatusCompleted, EventComplete,
		statemachine.WithGuard(windowOpen), statemachine.WithAction(stamp)),
	statemachine.WithTransition(StatusPending, StatusFailed, EventFail, statemachine.WithAction(stamp)),
	statemachine.WithTransition(StatusPending, StatusExpired, EventExpire,
		statemachine.WithGuard(windowClosed), statemachine.WithAction(stamp)),

	statemachine.WithTransition(StatusProcessing, StatusCompleted, EventComplete,
		statemachine.WithGuard(windowOpen), statemachine.WithAction(stamp)),
	statemachine.WithTransition(StatusProcessing, StatusFailed, EventFail, statemachine.WithAction(stamp)),
	statemachine.WithTransition(StatusProcessing, StatusExpired, EventExpire,
		statemachine.WithGuard(windowClosed), statemachine.WithAction(stamp)),
)

// canFire reports whether event is allowed for s at now without changing it.
func canFire(ctx context.Context, s *Session, event statemachine.Event, now time.Time) bool {
	return lifecycle.CanFire(ctx, s.Status, event, step{session: s, at: now})
}

// transition moves s to the state event leads to at now and stamps UpdatedAt.
// A completion refused by the validity window reports ErrSessionExpired.
func transition(ctx context.Context, s *Session, event statemachine.Event, now time.Time) error {
	next, err := lifecycle.Fire(ctx, s.Status, event, step{session: s, at: now})
	if err != nil {
		switch {
		case statemachine.IsTransitionRejectedError(err) && event == EventComplete:
			return ErrSessionExpired
		case statemachine.IsTerminalStateError(err),
			statemachine.IsNoTransitionAvailableError(err),
			statemachine.IsTransitionRejectedError(err):
			return &StateError{Status: s.Status, Event: event.Name()}
		}
		return errors.Join(ErrInvalidState, err)
	}
	s.Status = next.(Status)
	return nil
}
