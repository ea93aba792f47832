package capture

import (
	"fmt"
	"time"
)

// Config holds capture session policy.
type Config struct {
	SessionTTL        time.Duration      `env:"CAPTURE_SESSION_TTL" envDefault:"24h"`
	CodeLength        int                `env:"CAPTURE_CODE_LENGTH" envDefault:"8"`
	CodeMaxAttempts   int                `env:"CAPTURE_CODE_MAX_ATTEMPTS" envDefault:"10"`
	DefaultConfidence float64            `env:"CAPTURE_DEFAULT_CONFIDENCE" envDefault:"0.85"`
	UnknownFields     UnknownFieldPolicy `env:"CAPTURE_UNKNOWN_FIELDS" envDefault:"reject"`
	SweepInterval     time.Duration      `env:"CAPTURE_SWEEP_INTERVAL" envDefault:"5m"`
	SweepBatch        int                `env:"CAPTURE_SWEEP_BATCH" envDefault:"100"`
	PublicURL         string             `env:"CAPTURE_PUBLIC_URL" envDefault:"http://localhost:8080/m"`
	QRSize            int                `env:"CAPTURE_QR_SIZE" envDefault:"256"`
}

// DefaultConfig returns the policy used when no environment is loaded.
func DefaultConfig() Config {
	return Config{
		SessionTTL:        24 * time.Hour,
		CodeLength:        8,
		CodeMaxAttempts:   10,
		DefaultConfidence: 0.85,
		UnknownFields:     UnknownFieldsReject,
		SweepInterval:     5 * time.Minute,
		SweepBatch:        100,
		PublicURL:         "http://localhost:8080/m",
		QRSize:            256,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.SessionTTL <= 0:
		return fmt.Errorf("capture: session ttl must be positive, got %v", c.SessionTTL)
	case c.CodeLength < 4:
		return fmt.Errorf("capture: code length must be at least 4, got %d", c.CodeLength)
	case c.CodeMaxAttempts <= 0:
		return fmt.Errorf("capture: code max attempts must be positive, got %d", c.CodeMaxAttempts)
	case c.DefaultConfidence < 0 || c.DefaultConfidence > 1:
		return fmt.Errorf("capture: default confidence must be within [0, 1], got %v", c.DefaultConfidence)
	case c.SweepInterval < 0:
		return fmt.Errorf("capture: sweep interval must not be negative, got %v", c.SweepInterval)
	}
	return c.UnknownFields.validate()
}
