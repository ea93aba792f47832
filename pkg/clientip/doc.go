// Package clientip resolves the address of the caller when the service runs
// behind reverse proxies.
//
// Forwarding headers are trusted only when named in the Resolver's header
// list; with an empty list the TCP peer address is used. Trusting a header a
// client can set directly lets it pick its own rate-limit key, so list only
// headers written by infrastructure you control.
//
// Usage:
//
//	ips := clientip.New(cfg.TrustedHeaders...)
//	r.Use(ips.Middleware)
//	...
//	ip := clientip.FromContext(r.Context())
package clientip
