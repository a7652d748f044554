package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims is the subset of ID token claims the client displays.
// The API gateway validates tokens; the client only reads them.
type IDTokenClaims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Expired reports whether the token expiry lies before now
func (c IDTokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseIDToken decodes an ID token without verifying its signature
func ParseIDToken(token string) (IDTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return IDTokenClaims{}, fmt.Errorf("failed to decode ID token: %w", err)
	}

	var out IDTokenClaims
	out.Subject, _ = claims.GetSubject()
	if v, ok := claims["email"].(string); ok {
		out.Email = v
	}
	if v, ok := claims["name"].(string); ok {
		out.Name = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// DisplayNameFor picks the name shown for a user: the token's name claim,
// else the local part of the email address.
func DisplayNameFor(idToken, email string) string {
	if idToken != "" {
		if claims, err := ParseIDToken(idToken); err == nil && claims.Name != "" {
			return claims.Name
		}
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	if email != "" {
		return email
	}
	return "User"
}
