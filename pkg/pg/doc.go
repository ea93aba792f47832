// Package pg wraps pgx connection pooling, goose migrations and a few helpers
// shared by the PostgreSQL-backed stores: transactions, advisory locks and
// SQLSTATE classification.
package pg
