// Package capture mounts the HTTP surface of the measurement-capture engine:
// public link-code endpoints used by the capture device and bearer-token
// endpoints used by designers to issue sessions and manage clients.
//
// Domain errors are mapped to JSON error envelopes in one table
// (errorMapping); measurement errors carry the offending field in details.
package capture
