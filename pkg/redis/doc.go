// Package redis connects to Redis with retry, exposes a readiness probe and a
// small JSON pub/sub publisher used for domain event fan-out.
package redis
