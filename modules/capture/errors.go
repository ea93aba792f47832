package capture

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/fitcapture/handler"
	"github.com/dmitrymomot/fitcapture/pkg/jwt"
	"github.com/dmitrymomot/fitcapture/pkg/limits"
	capturesvc "github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

var (
	ErrGuestCaptureNotInPlan = errors.New("capture.guest_capture_not_in_plan")
	ErrManualEntryNotInPlan  = errors.New("capture.manual_entry_not_in_plan")
)

type mapping struct {
	target  error
	code    int
	key     string
	message string // empty keeps the error text
}

var errorMapping = []mapping{
	{capturesvc.ErrSessionNotFound, http.StatusNotFound, "invalid_link", "This link is invalid."},
	{capturesvc.ErrSessionExpired, http.StatusGone, "session_expired", "This link has expired. Ask your designer for a new one."},
	{capturesvc.ErrInvalidState, http.StatusConflict, "invalid_state", ""},
	{capturesvc.ErrGuestDetailsIncomplete, http.StatusUnprocessableEntity, "guest_details_incomplete", "Guest name and contact are both required."},
	{capturesvc.ErrNotGuestSession, http.StatusConflict, "not_guest_session", "Only quick scan sessions can be promoted."},
	{capturesvc.ErrInvalidIssueRequest, http.StatusBadRequest, "invalid_request", ""},
	{capturesvc.ErrPromotionFailed, http.StatusServiceUnavailable, "promotion_failed", ""},
	{capturesvc.ErrLedgerApplyFailed, http.StatusServiceUnavailable, "ledger_apply_failed", ""},
	{capturesvc.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "code_space_exhausted", ""},
	{clients.ErrClientNotFound, http.StatusNotFound, "client_not_found", "Client not found."},
	{clients.ErrInvalidClient, http.StatusUnprocessableEntity, "invalid_client", "Client name is required."},
	{clients.ErrInvalidMeasurementSet, http.StatusUnprocessableEntity, "invalid_measurement_set", ""},
	{limits.ErrLimitExceeded, http.StatusPaymentRequired, "plan_limit_reached", "Your plan does not allow more of this resource this period."},
	{ErrGuestCaptureNotInPlan, http.StatusPaymentRequired, "feature_not_in_plan", "Quick scans are not included in your plan."},
	{ErrManualEntryNotInPlan, http.StatusPaymentRequired, "feature_not_in_plan", "Manual measurement entry is not included in your plan."},
	{limits.ErrPlanNotFound, http.StatusForbidden, "plan_not_found", "Unknown subscription plan."},
	{limits.ErrPlanIDNotInContext, http.StatusForbidden, "plan_not_found", "No subscription plan on this account."},
	{jwt.ErrMissingToken, http.StatusUnauthorized, "unauthorized", "Authentication required."},
	{jwt.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "Invalid access token."},
	{jwt.ErrExpiredToken, http.StatusUnauthorized, "unauthorized", "Access token expired."},
	{jwt.ErrInvalidSubject, http.StatusUnauthorized, "unauthorized", "Invalid access token."},
}

// mapError translates domain errors into HTTP errors. Measurement errors
// carry the offending field in Details.
func mapError(err error) (handler.HTTPError, bool) {
	var merr *capturesvc.MeasurementError
	if errors.As(err, &merr) {
		key := "invalid_measurement_value"
		if errors.Is(err, capturesvc.ErrImplausibleMeasurement) {
			key = "implausible_measurement"
		}
		return handler.HTTPError{
			Code:    http.StatusUnprocessableEntity,
			Key:     key,
			Message: merr.Error(),
			Details: map[string][]string{merr.Field: {merr.Reason}},
			Err:     err,
		}, true
	}

	for _, m := range errorMapping {
		if !errors.Is(err, m.target) {
			continue
		}
		he := handler.NewHTTPError(m.code, m.key, err)
		if m.message != "" {
			he.Message = m.message
		}
		return he, true
	}
	return handler.HTTPError{}, false
}
