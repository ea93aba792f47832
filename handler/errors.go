package handler

import (
	"errors"
	"net/http"
)

var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError carries a status code and a stable machine-readable key. Details
// holds per-field messages for validation failures.
type HTTPError struct {
	Code    int
	Key     string
	Message string
	Details map[string][]string
	Err     error
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Key
}

func (e HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError wrapping err.
func NewHTTPError(code int, key string, err error) HTTPError {
	e := HTTPError{Code: code, Key: key, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// BadRequest is NewHTTPError with status 400.
func BadRequest(key string, err error) HTTPError {
	return NewHTTPError(http.StatusBadRequest, key, err)
}

// AsHTTPError returns the HTTPError in err's chain, or a generic 500.
func AsHTTPError(err error) HTTPError {
	var he HTTPError
	if errors.As(err, &he) {
		return he
	}
	return HTTPError{
		Code:    http.StatusInternalServerError,
		Key:     "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
		Err:     err,
	}
}
