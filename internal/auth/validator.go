// Package auth provides the TokenValidator external collaborator consumed
// by internal/wsserver. JWT issuance/validation proper is out of scope
// (§1); this package provides one concrete in-process session-table
// implementation, adapted from internal/auth/token_manager.go's
// Token/TokenInfo shape and expiry-check idiom (originally used for the
// agent's own outbound token to a backend, repurposed here for validating
// inbound session tokens against a local table).
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"superagent/internal/store"
)

// Session is one issued session token's bookkeeping, mirroring
// token_manager.go's Token struct shape (value, expiry, scope).
type Session struct {
	UserID    string
	ExpiresAt time.Time
	Scope     []string
}

func (s *Session) expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionValidator implements wsserver.TokenValidator against an in-memory
// session table plus the Users store.
type SessionValidator struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	users    store.Users
}

// NewSessionValidator returns an empty validator backed by users.
func NewSessionValidator(users store.Users) *SessionValidator {
	return &SessionValidator{sessions: make(map[string]*Session), users: users}
}

// Issue registers a new session token for userID, valid for ttl.
func (v *SessionValidator) Issue(token, userID string, ttl time.Duration, scope []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions[token] = &Session{UserID: userID, ExpiresAt: time.Now().Add(ttl), Scope: scope}
}

// Revoke removes a session token immediately.
func (v *SessionValidator) Revoke(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.sessions, token)
}

// Validate implements wsserver.TokenValidator.
func (v *SessionValidator) Validate(ctx context.Context, token string) (*store.User, error) {
	v.mu.RLock()
	session, ok := v.sessions[token]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: unknown token")
	}
	if session.expired() {
		v.Revoke(token)
		return nil, fmt.Errorf("auth: token expired")
	}
	return v.users.GetByID(ctx, session.UserID)
}
