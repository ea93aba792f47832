package linkcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultAlphabet drops glyphs that are easy to misread when a code is typed
	// from a phone screen: 0/O, 1/I/L.
	DefaultAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// DefaultLength gives 31^8 (~8.5e11) codes.
	DefaultLength = 8
	// DefaultMaxAttempts bounds Unique before it reports ErrCodeSpaceExhausted.
	DefaultMaxAttempts = 10
)

// Generator produces short human-shareable codes.
// Codes are random, not unique; use Unique to confirm them against a store.
type Generator struct {
	alphabet    string
	length      int
	maxAttempts int
	random      io.Reader
}

// New returns a generator with the default alphabet, length and attempt bound.
// Panics on an invalid configuration.
func New(opts ...Option) *Generator {
	g := &Generator{
		alphabet:    DefaultAlphabet,
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate(); err != nil {
		panic(err)
	}
	return g
}

// Generate returns one random code.
// Bytes above the largest multiple of the alphabet size are discarded so every
// symbol is equally likely.
func (g *Generator) Generate() (string, error) {
	size := len(g.alphabet)
	limit := 256 - 256%size

	var b strings.Builder
	b.Grow(g.length)

	buf := make([]byte, g.length*2)
	for b.Len() < g.length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", errors.Join(ErrRandomSource, err)
		}
		for _, v := range buf {
			if int(v) >= limit {
				continue
			}
			b.WriteByte(g.alphabet[int(v)%size])
			if b.Len() == g.length {
				break
			}
		}
	}
	return b.String(), nil
}

// Unique generates candidates and hands each to claim until one is accepted.
// claim returns ErrCodeTaken to ask for another candidate; any other error aborts.
// After MaxAttempts collisions ErrCodeSpaceExhausted is returned.
func (g *Generator) Unique(ctx context.Context, claim func(ctx context.Context, code string) error) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Generate()
		if err != nil {
			return "", err
		}

		err = claim(ctx, code)
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, ErrCodeTaken):
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %d attempts, alphabet %d, length %d",
		ErrCodeSpaceExhausted, g.maxAttempts, len(g.alphabet), g.length)
}

// Normalize maps user input onto the canonical code form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code could have been produced by the generator.
func (g *Generator) Valid(code string) bool {
	if len(code) != g.length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(g.alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func (g *Generator) validate() error {
	if len(g.alphabet) < 2 || len(g.alphabet) > 256 {
		return fmt.Errorf("%w: alphabet size %d", ErrInvalidConfig, len(g.alphabet))
	}
	seen := make(map[byte]struct{}, len(g.alphabet))
	for i := 0; i < len(g.alphabet); i++ {
		if _, dup := seen[g.alphabet[i]]; dup {
			return fmt.Errorf("%w: duplicate symbol %q", ErrInvalidConfig, g.alphabet[i])
		}
		seen[g.alphabet[i]] = struct{}{}
	}
	if g.length <= 0 {
		return fmt.Errorf("%w: length must be positive", ErrInvalidConfig)
	}
	if g.maxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidConfig)
	}
	if g.random == nil {
		return fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	return nil
}
