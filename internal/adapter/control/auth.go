package control

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"botgate/internal/domain"
)

// ClientInfo describes an authenticated control client. Name doubles as
// the owner string that gateway events are addressed to.
type ClientInfo struct {
	Name  string
	Roles []domain.AuthRole
}

// Can reports whether the client holds perm.
func (c *ClientInfo) Can(perm domain.Permission) bool {
	return domain.HasPermission(c.Roles, perm)
}

// Authenticator validates incoming control connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

// TokenEntry is one accepted client token.
type TokenEntry struct {
	Token string
	Name  string
	Roles []string
}

type authEntry struct {
	token []byte
	info  *ClientInfo
}

// StaticTokenAuth authenticates clients against a fixed token list using
// constant-time comparison.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator. Entries without a valid
// role get operator rights.
func NewStaticTokenAuth(entries []TokenEntry) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Token == "" {
			continue
		}
		roles := domain.StringsToAuthRoles(e.Roles)
		if len(roles) == 0 {
			roles = []domain.AuthRole{domain.AuthRoleOperator}
		}
		a.entries = append(a.entries, authEntry{
			token: []byte(e.Token),
			info:  &ClientInfo{Name: e.Name, Roles: roles},
		})
	}
	return a
}

// Authenticate returns the client bound to token.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	if token == "" {
		return nil, domain.ErrGatewayAuthFailed
	}
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			info := *e.info
			return &info, nil
		}
	}
	return nil, domain.ErrGatewayAuthFailed
}

// tokenFromRequest reads the ?token= query parameter or a Bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}
