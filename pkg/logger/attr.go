package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// SessionID records a capture session id under the key "session_id".
func SessionID(id any) slog.Attr {
	return idAttr("session_id", id)
}

// LinkCode records a public link code under the key "link_code".
func LinkCode(code string) slog.Attr {
	if code == "" {
		return slog.Attr{}
	}
	return slog.String("link_code", code)
}

// ClientID records a client record id under the key "client_id".
func ClientID(id any) slog.Attr {
	return idAttr("client_id", id)
}

// OwnerID records the designer that owns a resource under the key "owner_id".
func OwnerID(id any) slog.Attr {
	return idAttr("owner_id", id)
}

// Status records a lifecycle status under the key "status".
func Status(s string) slog.Attr {
	return slog.String("status", s)
}

// Count records a number of affected items under the key "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// idAttr drops nil ids, including typed nil pointers, so optional ids can be
// passed without a guard.
func idAttr(key string, id any) slog.Attr {
	switch v := id.(type) {
	case nil:
		return slog.Attr{}
	case uuid.UUID:
		return slog.String(key, v.String())
	case *uuid.UUID:
		if v == nil {
			return slog.Attr{}
		}
		return slog.String(key, v.String())
	}
	return slog.Any(key, id)
}
