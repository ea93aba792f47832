package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/fitcapture/pkg/logger"
)

// ErrorMapper translates domain errors into HTTPErrors. Returning false
// leaves err to the generic 500 path.
type ErrorMapper func(err error) (HTTPError, bool)

// NewErrorHandler renders errors as JSON envelopes. Client errors are logged
// at warn level, server errors at error level with the original cause.
func NewErrorHandler[C Context](log *slog.Logger, mappers ...ErrorMapper) ErrorHandler[C] {
	if log == nil {
		log = logger.Discard()
	}
	return func(ctx C, err error) {
		he := resolve(err, mappers)

		level := slog.LevelError
		if he.Code < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.Log(ctx, level, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", he.Code),
			slog.String("code", he.Key),
			logger.Error(err),
		)

		if he.Code >= http.StatusInternalServerError {
			he.Message = http.StatusText(he.Code)
			he.Details = nil
		}
		_ = Error(he).Render(ctx.ResponseWriter(), r)
	}
}

func resolve(err error, mappers []ErrorMapper) HTTPError {
	for _, m := range mappers {
		if he, ok := m(err); ok {
			return he
		}
	}
	return AsHTTPError(err)
}
