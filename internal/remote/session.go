package remote

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway makes the client refresh slightly before the server would
// start rejecting the token.
const expiryLeeway = 30 * time.Second

// Session holds the auth tokens for the current user. It is passed into
// the HTTP service explicitly (no ambient globals) so the core stays
// testable in isolation.
type Session struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewSession(accessToken, refreshToken string) *Session {
	return &Session{accessToken: accessToken, refreshToken: refreshToken}
}

func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *Session) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

func (s *Session) Clear() {
	s.SetTokens("", "")
}

// Authenticated reports whether any access token is present.
func (s *Session) Authenticated() bool {
	access, _ := s.Tokens()
	return access != ""
}

// Expired reports whether the access token is missing, unparsable, or past
// its exp claim. The token is parsed without signature verification; the
// server stays the authority, this only decides whether to refresh first.
func (s *Session) Expired(now time.Time) bool {
	access, _ := s.Tokens()
	if access == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Add(expiryLeeway).After(exp.Time)
}
