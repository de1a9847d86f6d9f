// Package auth holds the buyer's bearer token. The cart and checkout code only ever ask for the
// current token; where it is kept (memory for the session, a file when the buyer chose
// "remember me") is decided here.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider is the capability the cart and checkout code depend on.
type Provider interface {
	Token() string
	IsAuthenticated() bool
}

type Lifetime int

const (
	// LifetimeSession keeps the credential in memory until logout or process exit.
	LifetimeSession Lifetime = iota
	// LifetimePersistent also writes the credential to disk so it survives restarts.
	LifetimePersistent
)

type Profile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (p Profile) IsAdmin() bool {
	return p.Role == "admin" || p.Role == "Admin" || p.Role == "ADMIN"
}

type Credentials struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

var ErrEmptyToken = errors.New("token is empty")

// Store implements Provider with the two lifetimes. A persistent credential wins over a
// session one when both exist.
type Store struct {
	mu         sync.RWMutex
	session    *Credentials
	persistent *Credentials
	path       string
	now        func() time.Time
}

// NewStore loads a previously remembered credential from path, if any. An empty path disables
// the persistent lifetime.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	if c.Token != "" {
		s.persistent = &c
	}
	return s, nil
}

// Save stores c under lifetime l and drops any credential held under the other lifetime.
func (s *Store) Save(c Credentials, l Lifetime) error {
	if c.Token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch l {
	case LifetimePersistent:
		if s.path == "" {
			return fmt.Errorf("persistent credentials are not configured")
		}
		if err := writeFile(s.path, c); err != nil {
			return err
		}
		s.persistent = &c
		s.session = nil
	default:
		if err := removeFile(s.path); err != nil {
			return err
		}
		s.session = &c
		s.persistent = nil
	}
	return nil
}

// Forget removes the credential from both lifetimes.
func (s *Store) Forget() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.persistent = nil
	return removeFile(s.path)
}

// Token returns the current bearer token, or "" when there is none or it has expired.
func (s *Store) Token() string {
	c, ok := s.current()
	if !ok || Expired(c.Token, s.now()) {
		return ""
	}
	return c.Token
}

func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Store) Profile() (Profile, bool) {
	c, ok := s.current()
	if !ok {
		return Profile{}, false
	}
	return c.Profile, true
}

func (s *Store) current() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.persistent != nil {
		return *s.persistent, true
	}
	if s.session != nil {
		return *s.session, true
	}
	return Credentials{}, false
}

// Expired reports whether token is a JWT whose exp claim is before now. Opaque tokens never
// expire on the client; the server's 401 is the authority for them.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Static is a fixed token, handy for the CLI and tests.
type Static string

func (s Static) Token() string         { return string(s) }
func (s Static) IsAuthenticated() bool { return s != "" }

func writeFile(path string, c Credentials) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
