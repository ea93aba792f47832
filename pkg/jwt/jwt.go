package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by designer access tokens. The subject is the owner id.
type Claims struct {
	PlanID string `json:"plan,omitempty"`
	gojwt.RegisteredClaims
}

// OwnerID parses the subject as a UUID.
func (c *Claims) OwnerID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidSubject, err)
	}
	return id, nil
}

// Service signs and verifies HS256 tokens.
type Service struct {
	key    []byte
	issuer string
	parser *gojwt.Parser
	now    func() time.Time
}

// New creates a Service. issuer is set on generated tokens and, when not
// empty, required on parsed ones.
func New(signingKey, issuer string) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, gojwt.WithIssuer(issuer))
	}
	return &Service{
		key:    []byte(signingKey),
		issuer: issuer,
		parser: gojwt.NewParser(opts...),
		now:    time.Now,
	}, nil
}

// Generate issues a token for owner on plan valid for ttl.
func (s *Service) Generate(owner uuid.UUID, planID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		PlanID: planID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   owner.String(),
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Join(ErrSigningFailed, err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of token.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}
}
