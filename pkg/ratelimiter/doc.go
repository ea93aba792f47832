// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis-backed stores and an HTTP middleware that sets the standard
// X-RateLimit-* and Retry-After headers.
//
// Each key starts with Capacity tokens. Every RefillInterval, RefillRate tokens
// are added back up to Capacity. A request consuming more tokens than are
// available is denied without draining the bucket.
package ratelimiter
