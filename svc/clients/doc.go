// Package clients is the designer's client directory and the measurement
// ledger attached to each client.
//
// A ledger keeps one current measurement set and an append-only history of
// previously current sets. Every overwrite of current first archives the old
// set, and concurrent applies for one client are serialized by the Store, so
// no set is ever lost or archived twice. Applies carrying a SourceID (the
// capture session id) are idempotent.
package clients
