package bus

import (
	"crypto/subtle"

	"github.com/tunnelctl/controller/internal/domain"
)

// AgentInfo holds metadata about an authenticated agent connection.
type AgentInfo struct {
	Kind domain.AgentKind
	ID   string
}

// Authenticator validates incoming agent connections.
type Authenticator interface {
	Authenticate(token string) (*AgentInfo, error)
}

type authEntry struct {
	token []byte
	info  *AgentInfo
}

// StaticTokenAuth authenticates agents against a static per-agent token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// TokenEntry binds a bearer token to the agent identity it authenticates as.
type TokenEntry struct {
	Token string
	Kind  domain.AgentKind
	ID    string
}

// NewStaticTokenAuth builds an authenticator from a set of token entries.
func NewStaticTokenAuth(entries []TokenEntry) *StaticTokenAuth {
	a := &StaticTokenAuth{
		entries: make([]authEntry, len(entries)),
	}
	for i, e := range entries {
		a.entries[i] = authEntry{
			token: []byte(e.Token),
			info:  &AgentInfo{Kind: e.Kind, ID: e.ID},
		}
	}
	return a
}

// Authenticate returns agent info if the token is valid.
// Uses constant-time comparison to prevent timing attacks.
func (s *StaticTokenAuth) Authenticate(token string) (*AgentInfo, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.info, nil
		}
	}
	return nil, domain.ErrAuthFailed
}
