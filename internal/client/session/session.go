// Package session derives the sync owner identity from the backend's access
// token. The client never verifies the signature (only the server can), it
// just reads the subject and expiry claims.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fintrack-app/fintrack-go/internal/common"
)

// Session is the client-side view of an authenticated user: the token pair
// plus the claims the sync layer cares about. A zero Session means "no
// owner", and sync stores stay idle.
type Session struct {
	AccessToken  string
	RefreshToken string
	Owner        string
	ExpiresAt    time.Time
}

// FromTokens parses the access token without verification and extracts the
// owner id (sub) and expiry.
func FromTokens(accessToken, refreshToken string) (Session, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return Session{}, common.NewAppError(common.KindAuth, "the access token is malformed", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Session{}, common.NewAppError(common.KindAuth, "the access token has no subject", err)
	}

	s := Session{AccessToken: accessToken, RefreshToken: refreshToken, Owner: sub}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Session{}, common.NewAppError(common.KindAuth, "the access token has a malformed expiry", err)
	}
	if exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// Valid reports whether the session identifies an owner and has not expired.
func (s Session) Valid(now time.Time) bool {
	if s.Owner == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(s.ExpiresAt)
}

// Require returns a classified Auth error when the session cannot back a
// remote call.
func (s Session) Require(now time.Time) error {
	if s.Valid(now) {
		return nil
	}
	return common.NewAppError(common.KindAuth, "the session has expired", fmt.Errorf("session invalid for owner %q", s.Owner))
}
