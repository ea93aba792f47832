package clientip

import (
	"net"
	"net/http"
	"net/textproto"
	"strings"
)

// Config lists the forwarding headers to trust, in priority order.
type Config struct {
	TrustedHeaders []string `env:"HTTP_TRUSTED_IP_HEADERS" envSeparator:","`
}

// Resolver extracts the client IP from a request.
type Resolver struct {
	headers []string
}

// New creates a Resolver trusting headers in the given order.
// X-Forwarded-For style lists yield their first valid entry.
func New(headers ...string) *Resolver {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, textproto.CanonicalMIMEHeaderKey(h))
		}
	}
	return &Resolver{headers: out}
}

// IP returns the normalized client address, or "" when none is valid.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		for candidate := range strings.SplitSeq(r.Header.Get(h), ",") {
			if ip := normalize(candidate); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
