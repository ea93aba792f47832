// Package httpserver runs an http.Handler with sane timeouts and graceful
// shutdown on context cancellation or SIGINT/SIGTERM, and provides liveness and
// readiness handlers for orchestrator probes.
package httpserver
