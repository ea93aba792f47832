package clients

import "errors"

var (
	ErrClientNotFound        = errors.New("clients.not_found")
	ErrInvalidClient         = errors.New("clients.invalid")
	ErrDuplicateClient       = errors.New("clients.duplicate")
	ErrDuplicateOrigin       = errors.New("clients.duplicate_origin_session")
	ErrInvalidMeasurementSet = errors.New("clients.invalid_measurement_set")
)
