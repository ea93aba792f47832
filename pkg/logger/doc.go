// Package logger builds *slog.Logger instances with per-environment defaults,
// helper attribute constructors and context extractors that inject request-scoped
// values (the request id) into every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "fitcapture"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "session issued", logger.SessionID(id), logger.LinkCode(code))
//
// Attribute helpers return an empty slog.Attr for nil input; slog drops empty
// attributes so call sites need no nil checks.
package logger
