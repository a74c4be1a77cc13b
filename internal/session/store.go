// Package session holds who is logged in. The Store is the single source of
// truth for the identity and its token, mirrors it into durable storage, and
// is mutated only through Login, Register, UpdateProfile, Logout and Expire.
//
// A Store is an ordinary value: create as many as needed, each with its own
// storage and API client.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/existflow/topia/internal/api"
	"github.com/existflow/topia/internal/logger"
	"github.com/existflow/topia/internal/model"
	"github.com/existflow/topia/internal/storage"
)

// DefaultKey is the storage key holding the serialized identity
const DefaultKey = "userInfo"

var (
	// ErrBusy is returned when another mutating operation is still in flight
	ErrBusy = errors.New("session: another operation is in progress")
	// ErrNotAuthenticated is returned by operations that need a logged-in user
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrNoToken means the backend accepted the login but issued no token
	ErrNoToken = errors.New("session: backend returned no token")
)

// Credentials are what Login sends
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the fields Register sends
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// RegisterOptions is the per-call-site registration policy
type RegisterOptions struct {
	// AutoLogin authenticates right after registering. When false the
	// caller must send the user through Login.
	AutoLogin bool
}

// ProfilePatch is a partial profile update; empty fields are left alone
type ProfilePatch struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the store logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store is the session store
type Store struct {
	client  *api.Client
	storage storage.Storage
	key     string
	log     *logger.Logger

	mu       sync.Mutex
	state    State
	inFlight bool

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New creates an anonymous store and binds it to client, so every request the
// client sends carries this store's token and a 401 expires this store.
func New(client *api.Client, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		client:  client,
		storage: st,
		key:     DefaultKey,
		state:   State{Status: Anonymous},
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if client != nil {
		client.Bind(s, s)
	}
	return s
}

// Restore loads the persisted identity. It never fails: a missing, corrupt or
// token-less value leaves the store anonymous, and a corrupt value is removed.
func (s *Store) Restore(ctx context.Context) State {
	data, err := s.storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s.set(State{Status: Anonymous})
	case err != nil:
		s.log.Warn("Failed to read stored session", logger.Err(err))
		return s.set(State{Status: Anonymous})
	}

	var u model.User
	if err := json.Unmarshal(data, &u); err != nil || u.Token == "" {
		s.log.Warn("Discarding unreadable stored session", logger.F("key", s.key))
		if rmErr := s.storage.Remove(ctx, s.key); rmErr != nil {
			s.log.Warn("Failed to remove stored session", logger.Err(rmErr))
		}
		return s.set(State{Status: Anonymous})
	}

	s.log.Debug("Session restored", logger.F("user_id", u.ID))
	return s.set(State{Status: Authenticated, User: &u})
}

// Login authenticates with email and password
func (s *Store) Login(ctx context.Context, cred Credentials) (*model.User, error) {
	if err := s.beginAuth(); err != nil {
		return nil, err
	}
	s.log.Info("Logging in", logger.F("email", cred.Email))

	var u model.User
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/login", cred, &u); err != nil {
		return nil, s.fail(err)
	}
	return s.authenticate(ctx, &u)
}

// Register creates an account. With opts.AutoLogin the store authenticates
// with the returned token, or logs in with the same credentials when the
// backend returned none; otherwise the store ends anonymous.
func (s *Store) Register(ctx context.Context, reg Registration, opts RegisterOptions) (*model.User, error) {
	if err := s.beginAuth(); err != nil {
		return nil, err
	}
	s.log.Info("Registering", logger.F("email", reg.Email), logger.F("auto_login", opts.AutoLogin))

	var created model.User
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/register", reg, &created); err != nil {
		return nil, s.fail(err)
	}

	if !opts.AutoLogin {
		s.finish(func(st *State) { *st = State{Status: Anonymous} })
		created.Token = ""
		return &created, nil
	}
	if created.Token != "" {
		return s.authenticate(ctx, &created)
	}

	var u model.User
	cred := Credentials{Email: reg.Email, Password: reg.Password}
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/login", cred, &u); err != nil {
		return nil, s.fail(err)
	}
	return s.authenticate(ctx, &u)
}

// UpdateProfile sends patch and merges the response into the identity,
// keeping the token. A failure leaves the session logged in and is recorded
// in State.ProfileErr.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) (*model.User, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if !s.state.IsAuthenticated() {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	s.inFlight = true
	s.state.Loading = true
	s.state.ProfileErr = nil
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)

	var resp struct {
		Data model.User `json:"data"`
	}
	err := s.client.JSON(ctx, http.MethodPut, "/users/profile", patch, &resp)

	s.mu.Lock()
	s.inFlight = false
	s.state.Loading = false

	// Expired while the request was out
	if !s.state.IsAuthenticated() {
		snap = s.state.clone()
		s.mu.Unlock()
		s.notify(snap)
		if err != nil {
			return nil, err
		}
		return nil, ErrNotAuthenticated
	}

	if err != nil {
		s.state.ProfileErr = err
		snap = s.state.clone()
		s.mu.Unlock()
		s.notify(snap)
		s.log.Warn("Profile update failed", logger.Err(err))
		return nil, err
	}

	updated := s.state.User.Clone()
	updated.Merge(resp.Data)
	s.state.User = updated
	s.persistLocked(ctx, updated)
	snap = s.state.clone()
	s.mu.Unlock()
	s.notify(snap)

	s.log.Info("Profile updated", logger.F("user_id", updated.ID))
	return updated.Clone(), nil
}

// Logout clears the session locally. It always succeeds and is idempotent.
func (s *Store) Logout() {
	s.clear("Logged out")
}

// Expire clears the session after the backend rejected the token
func (s *Store) Expire() {
	s.clear("Session expired")
}

func (s *Store) clear(reason string) {
	s.mu.Lock()
	s.state = State{Status: Anonymous}
	if err := s.storage.Remove(context.Background(), s.key); err != nil {
		s.log.Warn("Failed to remove stored session", logger.Err(err))
	}
	snap := s.state.clone()
	s.mu.Unlock()

	s.log.Info(reason)
	s.notify(snap)
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// User returns a copy of the identity, nil when not authenticated
func (s *Store) User() *model.User {
	return s.State().User
}

// Token returns the bearer token, "" when not authenticated
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return ""
	}
	return s.state.User.Token
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// beginAuth marks a login/registration as in flight
func (s *Store) beginAuth() error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	s.inFlight = true
	s.state = State{Status: Authenticating, Loading: true}
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// authenticate installs u as the identity and persists it
func (s *Store) authenticate(ctx context.Context, u *model.User) (*model.User, error) {
	if u.Token == "" {
		return nil, s.fail(ErrNoToken)
	}
	u.DeriveAdmin()

	s.mu.Lock()
	s.inFlight = false
	s.state = State{Status: Authenticated, User: u}
	s.persistLocked(ctx, u)
	snap := s.state.clone()
	s.mu.Unlock()

	s.notify(snap)
	s.log.Info("Authenticated", logger.F("user_id", u.ID), logger.F("admin", u.IsAdmin))
	return u.Clone(), nil
}

// fail moves to the terminal error state and returns err
func (s *Store) fail(err error) error {
	msg := api.Message(err)
	s.finish(func(st *State) {
		*st = State{Status: Failed, Err: err, Message: msg}
	})
	s.log.Warn("Authentication failed", logger.F("message", msg))
	return err
}

func (s *Store) finish(apply func(*State)) {
	s.mu.Lock()
	s.inFlight = false
	apply(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)
}

// persistLocked writes u under s.key; callers hold s.mu so a concurrent
// Logout cannot interleave with the write.
func (s *Store) persistLocked(ctx context.Context, u *model.User) {
	data, err := json.Marshal(u)
	if err == nil {
		err = s.storage.Set(ctx, s.key, data)
	}
	if err != nil {
		s.log.Error("Failed to persist session", logger.Err(err))
	}
}

func (s *Store) set(st State) State {
	s.mu.Lock()
	s.state = st
	snap := s.state.clone()
	s.mu.Unlock()
	s.notify(snap)
	return snap
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
