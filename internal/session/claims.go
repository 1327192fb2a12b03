package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialInfo describes the claims visible in the held credential. The
// signature is not verified; the values are for display only and never
// replace confirmation by the service.
type CredentialInfo struct {
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential's expiry has passed at now. A
// credential without an expiry never reports expired.
func (c CredentialInfo) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CredentialInfo decodes the held credential. It returns false when no
// credential is held or the credential is not a JWT.
func (m *Manager) CredentialInfo() (CredentialInfo, bool) {
	m.stateMu.RLock()
	credential := m.credential
	m.stateMu.RUnlock()
	return ParseCredential(credential)
}

// ParseCredential reads the registered claims of a JWT without verifying it.
func ParseCredential(credential string) (CredentialInfo, bool) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return CredentialInfo{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return CredentialInfo{}, false
	}
	info := CredentialInfo{
		Subject:  claims.Subject,
		Audience: []string(claims.Audience),
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return info, true
}
