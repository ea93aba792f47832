package jwt

import "errors"

var (
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrMissingToken      = errors.New("jwt: missing bearer token")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token expired")
	ErrInvalidSubject    = errors.New("jwt: subject is not a valid owner id")
	ErrSigningFailed     = errors.New("jwt: signing failed")
)
