package capture

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("capture.session_not_found")
	ErrSessionExpired  = errors.New("capture.session_expired")
	ErrInvalidState    = errors.New("capture.invalid_state")

	// ErrInvalidMeasurementValue rejects the whole submission; see MeasurementError.
	ErrInvalidMeasurementValue = errors.New("capture.invalid_measurement_value")

	// ErrImplausibleMeasurement is a well-formed payload outside body bounds.
	// The session is moved to failed.
	ErrImplausibleMeasurement = errors.New("capture.implausible_measurement")

	// ErrPromotionFailed means the measurements were accepted but the guest
	// could not be turned into a client. Retry with Manager.Promote.
	ErrPromotionFailed = errors.New("capture.promotion_failed")

	// ErrLedgerApplyFailed means the measurements were accepted but the client
	// ledger was not updated. Retry with Manager.Reconcile.
	ErrLedgerApplyFailed = errors.New("capture.ledger_apply_failed")

	// ErrCodeSpaceExhausted is an operational alert, not a caller error.
	ErrCodeSpaceExhausted = errors.New("capture.code_space_exhausted")

	ErrGuestDetailsIncomplete = errors.New("capture.guest_details_incomplete")
	ErrNotGuestSession        = errors.New("capture.not_guest_session")
	ErrInvalidIssueRequest    = errors.New("capture.invalid_issue_request")
)

// StateError reports a transition attempted from a state that does not allow it.
type StateError struct {
	Status Status
	Event  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("capture: cannot %s, session is %s", e.Event, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// MeasurementError names the payload field that failed validation.
type MeasurementError struct {
	Field  string
	Reason string
	Err    error
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("capture: measurement %q: %s", e.Field, e.Reason)
}

func (e *MeasurementError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidMeasurementValue
}

func invalidValue(field, reason string) error {
	return &MeasurementError{Field: field, Reason: reason, Err: ErrInvalidMeasurementValue}
}

func implausibleValue(field, reason string) error {
	return &MeasurementError{Field: field, Reason: reason, Err: ErrImplausibleMeasurement}
}
