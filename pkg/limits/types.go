package limits

// Resource is a countable per-owner resource.
type Resource string

const (
	// ResourceCaptureSessions counts capture sessions issued in the current
	// calendar month (UTC).
	ResourceCaptureSessions Resource = "capture_sessions"
	// ResourceClients counts client records in the owner's directory.
	ResourceClients Resource = "clients"
)

// Unlimited disables the limit for a resource.
const Unlimited int64 = -1

// Feature is a plan-specific capability flag.
type Feature string

const (
	// FeatureGuestCapture allows issuing sessions without an existing client record.
	FeatureGuestCapture Feature = "guest_capture"
	// FeatureManualEntry allows recording measurements typed in by the designer.
	FeatureManualEntry Feature = "manual_entry"
)

// Plan describes what an owner is allowed to do.
type Plan struct {
	ID       string             `yaml:"id"`
	Name     string             `yaml:"name"`
	Limits   map[Resource]int64 `yaml:"limits"`
	Features []Feature          `yaml:"features"`
}

// Usage is the current consumption against a limit.
type Usage struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}
