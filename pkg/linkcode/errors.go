package linkcode

import "errors"

var (
	// ErrCodeTaken is returned by a claim function when the candidate already exists.
	ErrCodeTaken = errors.New("linkcode.taken")

	// ErrCodeSpaceExhausted means Unique hit its attempt bound. At expected load this
	// points to a charset/length defect or a broken uniqueness check, not bad luck.
	ErrCodeSpaceExhausted = errors.New("linkcode.space_exhausted")

	ErrRandomSource  = errors.New("linkcode.random_source_failed")
	ErrInvalidConfig = errors.New("linkcode.invalid_config")
)
