// Package auth verifies the HS256 personnel tokens minted by the back-office
// login. This service never issues tokens to end users; Sign exists for
// tooling and tests sharing the secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/config"
)

var (
	signingMethod = jwt.SigningMethodHS256

	ErrMissingSecret = errors.New("jwt secret is required")
	ErrBadSubject    = errors.New("subject is not a personnel id")
)

// Verifier checks signature, issuer and expiry of personnel tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

func (v *Verifier) Verify(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, v.key); err != nil {
		return nil, err
	}
	if _, err := claims.PersonnelID(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSubject, err)
	}
	return claims, nil
}

func (v *Verifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}

// ParseAccessToken is a one-shot Verify.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	v, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	return v.Verify(token)
}

// Sign issues a token valid for ttl from now.
func Sign(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrMissingSecret
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case ttl <= 0:
		return "", errors.New("token ttl must be positive")
	case payload.PersonnelID == uuid.Nil:
		return "", errors.New("personnel id is required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		Name: strings.TrimSpace(payload.Name),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.PersonnelID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
