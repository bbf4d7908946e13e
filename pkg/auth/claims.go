package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is what Sign needs to issue a personnel token.
type AccessTokenPayload struct {
	PersonnelID uuid.UUID
	Name        string
	JTI         string
}

// AccessTokenClaims is the token the back-office login issues. The subject
// carries the personnel id.
type AccessTokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) PersonnelID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
