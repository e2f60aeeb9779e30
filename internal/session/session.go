// Package session holds the authenticated identity of the client: the bearer
// token and the minimal user profile, persisted across runs.
package session

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/pavelanni/learny/internal/model"
)

// Persisted key names.
const (
	KeyToken = "authToken"
	KeyUser  = "user"
	KeyRole  = "userRole"
)

// Readiness answers "is there an authenticated identity".
type Readiness int

const (
	// Unknown means the persisted state has not been read yet.
	Unknown Readiness = iota
	Authenticated
	Unauthenticated
)

func (r Readiness) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Persister is the key/value storage the session lives in.
type Persister interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
	DeleteState(keys ...string) error
}

// Store is the session context object. Its lifecycle is Init (read persisted
// state), Login/Clear (update), and nothing to tear down beyond the persister.
type Store struct {
	p Persister

	mu        sync.RWMutex
	readiness Readiness
	token     string
	user      *model.User
	onClear   []func()
}

// New returns a session store in the Unknown state.
func New(p Persister) *Store {
	return &Store{p: p}
}

// Init reads the persisted identity. A session counts as authenticated only
// when token, user and role are all present and the user decodes.
func (s *Store) Init() error {
	token, err := s.p.GetState(KeyToken)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	rawUser, err := s.p.GetState(KeyUser)
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}
	role, err := s.p.GetState(KeyRole)
	if err != nil {
		return fmt.Errorf("read role: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.readiness = Unauthenticated
	s.token, s.user = "", nil
	if token == "" || rawUser == "" || role == "" {
		return nil
	}
	var u model.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		slog.Warn("discarding unreadable persisted user", "error", err)
		return nil
	}
	u.Role = model.UserRole(role)
	s.token, s.user = token, &u
	s.readiness = Authenticated
	slog.Debug("session restored", "user_id", u.ID, "role", u.Role, "token_fp", Fingerprint(token))
	return nil
}

// Readiness returns the current readiness.
func (s *Store) Readiness() Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readiness
}

// Authenticated reports whether an identity is present.
func (s *Store) Authenticated() bool {
	return s.Readiness() == Authenticated
}

// Token returns the bearer token, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login persists a fresh identity from a login or register response.
func (s *Store) Login(resp model.AuthResponse) error {
	if resp.Token == "" || resp.User == nil {
		return fmt.Errorf("incomplete auth response")
	}
	u := *resp.User
	if resp.Role != "" {
		u.Role = resp.Role
	}
	rawUser, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.p.SetState(KeyToken, resp.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.p.SetState(KeyUser, string(rawUser)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := s.p.SetState(KeyRole, string(u.Role)); err != nil {
		return fmt.Errorf("persist role: %w", err)
	}

	s.mu.Lock()
	s.token, s.user = resp.Token, &u
	s.readiness = Authenticated
	s.mu.Unlock()

	slog.Info("logged in", "user_id", u.ID, "role", u.Role, "token_fp", Fingerprint(resp.Token))
	return nil
}

// Clear drops the identity, in memory first and then on disk. It is called on
// logout and whenever the backend rejects the token. The in-memory state is
// cleared even when the persister fails.
func (s *Store) Clear() error {
	s.mu.Lock()
	had := s.token != ""
	s.token, s.user = "", nil
	s.readiness = Unauthenticated
	listeners := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	err := s.p.DeleteState(KeyToken, KeyUser, KeyRole)
	if had {
		slog.Info("session cleared")
		for _, fn := range listeners {
			fn()
		}
	}
	if err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

// OnClear registers fn to run after an authenticated session is cleared.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

// Fingerprint returns a short non-reversible tag for a token, safe for logs.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
