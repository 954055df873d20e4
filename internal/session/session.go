// Package session owns the authenticated identity, its bearer credential and role set.
//
// The Store is the only writer; every other component receives a Reader.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/storage"
)

// State is the settledness of the session.
type State int

const (
	// Pending means rehydration has not settled yet; views must not redirect.
	Pending State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Reader is the read-only view of the session handed to other components.
type Reader interface {
	State() State
	IsAuthenticated() bool
	HasRole(r model.Role) bool
	Identity() (model.Identity, bool)
	Token() string
}

// Validator checks a stored credential against the backend during rehydration.
// Both calls authenticate with the credential the Store currently exposes via Token.
type Validator interface {
	ValidateToken(ctx context.Context) (bool, error)
	FetchProfile(ctx context.Context) (model.Identity, error)
}

// Update is a partial identity; nil fields are left unchanged.
type Update struct {
	Username *string
	Email    *string
	FullName *string
	NgoID    *int64
	Roles    []model.Role
}

// storedUser is the identity subset kept in durable storage.
type storedUser struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
	NgoID    *int64   `json:"ngoId,omitempty"`
}

// Store holds the current session.
type Store struct {
	durable storage.Store
	log     *zap.Logger
	now     func() time.Time

	mu        sync.RWMutex
	state     State
	identity  *model.Identity
	token     string
	listeners []func(State)
}

var _ Reader = (*Store)(nil)

// New creates a Store in the Pending state. Call Rehydrate (or Login) to settle it.
func New(durable storage.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{durable: durable, log: log, now: time.Now, state: Pending}
}

// OnChange registers fn to be called after every state change.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether a settled, authenticated session exists.
func (s *Store) IsAuthenticated() bool { return s.State() == Authenticated }

// HasRole is false whenever the session is not authenticated.
func (s *Store) HasRole(r model.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.identity == nil {
		return false
	}
	return s.identity.HasRole(r)
}

// Identity returns a copy of the current identity.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Authenticated || s.identity == nil {
		return model.Identity{}, false
	}
	return cloneIdentity(*s.identity), true
}

// Token returns the bearer credential. It is also exposed while Pending so that
// rehydration can validate it.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == Unauthenticated {
		return ""
	}
	return s.token
}

// Login stores identity and token in memory and in durable storage. The session
// is authenticated even if persisting fails; the error is returned for reporting.
func (s *Store) Login(id model.Identity, token string) error {
	id = cloneIdentity(id)
	s.set(Authenticated, &id, token)
	return s.persist(id, token)
}

// Logout clears memory and durable storage. It does not navigate.
func (s *Store) Logout() error {
	s.set(Unauthenticated, nil, "")
	return storage.Clear(s.durable)
}

// UpdateUser merges a partial identity and persists it. The credential is untouched.
func (s *Store) UpdateUser(u Update) error {
	s.mu.Lock()
	if s.state != Authenticated || s.identity == nil {
		s.mu.Unlock()
		return errs.ErrNotAuthenticated
	}
	id := cloneIdentity(*s.identity)
	if u.Username != nil {
		id.Username = *u.Username
	}
	if u.Email != nil {
		id.Email = *u.Email
	}
	if u.FullName != nil {
		id.FullName = *u.FullName
	}
	if u.NgoID != nil {
		v := *u.NgoID
		id.NgoID = &v
	}
	if u.Roles != nil {
		id.Roles = append([]model.Role(nil), u.Roles...)
	}
	s.identity = &id
	s.mu.Unlock()

	return s.writeUser(id)
}

// Rehydrate restores a session from durable storage, validating the credential
// remotely. Any failure is an implicit logout; the resulting state is returned.
func (s *Store) Rehydrate(ctx context.Context, v Validator) State {
	token, ok, err := s.durable.Get(storage.KeyToken)
	if err != nil || !ok || token == "" {
		if err != nil {
			s.log.Warn("session storage unreadable", zap.Error(err))
		}
		return s.drop("no stored credential")
	}
	if s.expired(token) {
		return s.drop("stored credential expired")
	}

	s.set(Pending, nil, token)

	valid, err := v.ValidateToken(ctx)
	if err != nil || !valid {
		if err != nil {
			s.log.Info("credential validation failed", zap.Error(err))
		}
		return s.drop("credential rejected")
	}

	if id, ok := s.readUser(); ok {
		s.set(Authenticated, &id, token)
		return Authenticated
	}

	id, err := v.FetchProfile(ctx)
	if err != nil {
		s.log.Info("identity fetch failed", zap.Error(err))
		return s.drop("identity unavailable")
	}
	if err := s.Login(id, token); err != nil {
		s.log.Warn("persist identity", zap.Error(err))
	}
	return Authenticated
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens are left for the backend to judge.
func (s *Store) expired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && s.now().After(claims.ExpiresAt.Time)
}

func (s *Store) drop(reason string) State {
	if err := s.Logout(); err != nil {
		s.log.Warn("clear session storage", zap.Error(err))
	}
	s.log.Debug("session dropped", zap.String("reason", reason))
	return Unauthenticated
}

func (s *Store) set(state State, id *model.Identity, token string) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.identity = id
	s.token = token
	listeners := append(([]func(State))(nil), s.listeners...)
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(state)
		}
	}
}

func (s *Store) persist(id model.Identity, token string) error {
	if err := s.durable.Set(storage.KeyToken, token); err != nil {
		return err
	}
	return s.writeUser(id)
}

func (s *Store) writeUser(id model.Identity) error {
	su := storedUser{
		ID:       id.ID,
		Username: id.Username,
		Email:    id.Email,
		FullName: id.FullName,
		NgoID:    id.NgoID,
		Roles:    make([]string, 0, len(id.Roles)),
	}
	for _, r := range id.Roles {
		su.Roles = append(su.Roles, string(r))
	}
	b, err := json.Marshal(su)
	if err != nil {
		return err
	}
	return s.durable.Set(storage.KeyUser, string(b))
}

func (s *Store) readUser() (model.Identity, bool) {
	raw, ok, err := s.durable.Get(storage.KeyUser)
	if err != nil || !ok {
		return model.Identity{}, false
	}
	var su storedUser
	if err := json.Unmarshal([]byte(raw), &su); err != nil || su.Username == "" {
		return model.Identity{}, false
	}
	id := model.Identity{
		ID:       su.ID,
		Username: su.Username,
		Email:    su.Email,
		FullName: su.FullName,
		NgoID:    su.NgoID,
	}
	for _, r := range su.Roles {
		if role, err := model.ParseRole(r); err == nil {
			id.Roles = append(id.Roles, role)
		}
	}
	return id, true
}

func cloneIdentity(id model.Identity) model.Identity {
	out := id
	out.Roles = append([]model.Role(nil), id.Roles...)
	if id.NgoID != nil {
		v := *id.NgoID
		out.NgoID = &v
	}
	return out
}
