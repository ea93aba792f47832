package linkcode

import "io"

// Option configures a Generator.
type Option func(*Generator)

func WithAlphabet(alphabet string) Option {
	return func(g *Generator) { g.alphabet = alphabet }
}

func WithLength(n int) Option {
	return func(g *Generator) { g.length = n }
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) { g.maxAttempts = n }
}

// WithRandom replaces crypto/rand, mostly for tests.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}
