package gateway

import (
	"crypto/subtle"
	"slices"

	"maestro-console/internal/domain"
	"maestro-console/internal/infra/config"
)

// Gateway roles. A token without roles is an operator.
const (
	RoleObserver = "observer" // may read the console
	RoleOperator = "operator" // may also start and stop sessions
)

// ClientInfo holds metadata about an authenticated gateway client.
type ClientInfo struct {
	Name  string
	Roles []string
}

// CanOperate reports whether the client may drive sessions.
func (c *ClientInfo) CanOperate() bool {
	return len(c.Roles) == 0 || slices.Contains(c.Roles, RoleOperator) || slices.Contains(c.Roles, "admin")
}

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

// NewAuthenticator builds the authenticator selected by cfg.Type.
// An empty type accepts every client as an anonymous operator.
func NewAuthenticator(cfg config.AuthConfig) Authenticator {
	if cfg.Type == "static" {
		return NewStaticTokenAuth(cfg.Tokens)
	}
	return openAuth{}
}

type openAuth struct{}

func (openAuth) Authenticate(string) (*ClientInfo, error) {
	return &ClientInfo{Name: "anonymous"}, nil
}

type authEntry struct {
	token []byte
	info  *ClientInfo
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from configured tokens.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(tokens))}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		a.entries = append(a.entries, authEntry{
			token: []byte(t.Token),
			info:  &ClientInfo{Name: t.Name, Roles: slices.Clone(t.Roles)},
		})
	}
	return a
}

// Authenticate returns client info if the token is valid.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.info, nil
		}
	}
	return nil, domain.ErrGatewayAuthFailed
}
