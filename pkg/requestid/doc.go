// Package requestid attaches a correlation id to every HTTP request and makes it
// available to handlers and structured logs.
package requestid
