// Package session implements the session guard: it tracks the auth token and
// its expiry, persists it between runs and reacts to server-side
// invalidation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/gateway"
)

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New(config.ErrNotAuthenticated)
	// ErrValidation wraps every locally detected input error.
	ErrValidation = errors.New(config.ErrValidation)
	// ErrIncompleteLogin is returned when the backend omits user or token.
	ErrIncompleteLogin = gateway.ErrIncompleteLogin
)

// State is the position of the guard in its lifecycle.
type State int

const (
	Unauthenticated State = iota
	Verifying
	Authenticated
	// Expired is reported once the held session passes its expiry.
	Expired
)

func (s State) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Session is the persisted record. ExpiresAt is epoch millis.
type Session struct {
	User      gateway.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt *int64       `json:"expiresAt"`
}

// Valid reports whether the session carries a token that has not expired
// at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && (s.ExpiresAt == nil || *s.ExpiresAt > now.UnixMilli())
}

// AuthAPI is the subset of the auth gateway the guard relies on.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (gateway.LoginResult, error)
	Register(ctx context.Context, r gateway.RegisterRequest) (gateway.RegisterResult, error)
	Logout(ctx context.Context) error
	Verify(ctx context.Context) gateway.VerifyResult
	UpdateProfile(ctx context.Context, p gateway.ProfilePatch) (gateway.ProfileResult, error)
	DeleteAccount(ctx context.Context, password string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, r gateway.ResetRequest) error
	VerifyEmail(ctx context.Context, v gateway.EmailVerification) (bool, error)
}

// Guard owns the current session. Remote calls are made without holding
// the lock: the gateway may call HandleUnauthorized synchronously.
type Guard struct {
	api     AuthAPI
	storage Storage
	clock   Clock
	log     *slog.Logger

	mu        sync.RWMutex
	session   *Session
	state     State
	listeners []func(Session, State)
}

// NewGuard creates a guard in the Unauthenticated state. Call Init to
// restore a persisted session.
func NewGuard(api AuthAPI, storage Storage, clock Clock) *Guard {
	if clock == nil {
		clock = RealClock{}
	}
	return &Guard{
		api:     api,
		storage: storage,
		clock:   clock,
		log:     slog.With(config.LogKeyComponent, config.CompSession),
	}
}

// Subscribe registers fn to run after every transition.
func (g *Guard) Subscribe(fn func(Session, State)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// State returns the current state. An authenticated session whose expiry
// has passed reports Expired.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state == Authenticated && g.session != nil && !g.session.Valid(g.clock.Now()) {
		return Expired
	}
	return g.state
}

// Authenticated reports whether a token is held and not expired.
func (g *Guard) Authenticated() bool {
	return g.State() == Authenticated
}

// Session returns the held session, if any.
func (g *Guard) Session() (Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return Session{}, false
	}
	return *g.session, true
}

// Token returns the bearer token of the held session. It is available while
// Verifying so the check itself can authenticate.
func (g *Guard) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return ""
	}
	return g.session.Token
}

// Init restores the persisted session and checks it against the backend.
func (g *Guard) Init(ctx context.Context) error {
	raw, err := g.storage.Get(ctx, config.StorageKeySession)
	if errors.Is(err, ErrNotFound) {
		g.log.Debug(config.MsgSessionNone)
		g.set(nil, Unauthenticated)
		return nil
	}
	if err != nil {
		g.set(nil, Unauthenticated)
		return fmt.Errorf("%s: %w", config.ErrSessionRead, err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		g.log.Warn(config.ErrSessionDecode, config.LogKeyError, err)
		g.clear(ctx)
		return nil
	}
	if !s.Valid(g.clock.Now()) {
		g.log.Info(config.MsgSessionExpired, config.LogKeyUser, s.User.ID)
		g.clear(ctx)
		return nil
	}

	g.log.Debug(config.MsgSessionLoaded, config.LogKeyUser, s.User.ID)
	g.set(&s, Verifying)

	res := g.api.Verify(ctx)
	if !res.Valid {
		g.log.Info(config.MsgSessionInvalid, config.LogKeyUser, s.User.ID)
		g.clear(ctx)
		return nil
	}

	g.mu.Lock()
	if g.session == nil || g.session.Token != s.Token {
		// Cleared by an unauthorized signal while verifying.
		g.mu.Unlock()
		return nil
	}
	if res.User != nil {
		s.User = *res.User
	}
	if res.ExpiresAt != nil {
		s.ExpiresAt = res.ExpiresAt
	}
	g.mu.Unlock()

	g.log.Info(config.MsgSessionVerified, config.LogKeyUser, s.User.ID)
	return g.establish(ctx, s)
}

// Login authenticates with credentials and persists the session.
func (g *Guard) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" {
		return Session{}, fmt.Errorf("%w: %s", ErrValidation, config.ErrEmailRequired)
	}
	if password == "" {
		return Session{}, fmt.Errorf("%w: %s", ErrValidation, config.ErrPasswordRequired)
	}

	res, err := g.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Session{}, err
	}
	s := Session{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt}
	if err := g.establish(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// Logout notifies the backend, ignoring failures, then always clears the
// local session.
func (g *Guard) Logout(ctx context.Context) {
	if g.Token() != "" {
		if err := g.api.Logout(ctx); err != nil {
			g.log.Debug(config.MsgLogoutIgnored, config.LogKeyError, err)
		}
	}
	g.clear(ctx)
}

// HandleUnauthorized ends the session after the server rejected the token.
// Only local state is cleared: a remote logout would be rejected as well.
func (g *Guard) HandleUnauthorized() {
	if g.Token() == "" {
		return
	}
	g.log.Warn(config.MsgUnauthorized)
	g.clear(context.Background())
}

// UpdateProfile changes the account and re-persists the session with the
// same token and expiry. The server's user object is preferred; without one
// the patch is merged locally.
func (g *Guard) UpdateProfile(ctx context.Context, p gateway.ProfilePatch) (gateway.User, error) {
	current, ok := g.Session()
	if !ok || !g.Authenticated() {
		return gateway.User{}, ErrNotAuthenticated
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return gateway.User{}, fmt.Errorf("%w: %s", ErrValidation, config.ErrNameRequired)
	}

	res, err := g.api.UpdateProfile(ctx, p)
	if err != nil {
		return gateway.User{}, err
	}

	user := current.User
	if res.User != nil {
		user = *res.User
	} else if p.Name != nil {
		user.Name = strings.TrimSpace(*p.Name)
	}

	g.mu.RLock()
	still := g.session != nil && g.session.Token == current.Token
	g.mu.RUnlock()
	if !still {
		return user, ErrNotAuthenticated
	}
	current.User = user
	return user, g.establish(ctx, current)
}

// Register creates an account after local validation. It does not log in.
func (g *Guard) Register(ctx context.Context, r gateway.RegisterRequest) (gateway.RegisterResult, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	switch {
	case r.Name == "":
		return gateway.RegisterResult{}, fmt.Errorf("%w: %s", ErrValidation, config.ErrNameRequired)
	case r.Email == "":
		return gateway.RegisterResult{}, fmt.Errorf("%w: %s", ErrValidation, config.ErrEmailRequired)
	}
	if err := validatePassword(r.Password, r.Confirmation); err != nil {
		return gateway.RegisterResult{}, err
	}
	return g.api.Register(ctx, r)
}

// DeleteAccount removes the account and ends the session on success.
func (g *Guard) DeleteAccount(ctx context.Context, password string) error {
	if !g.Authenticated() {
		return ErrNotAuthenticated
	}
	if password == "" {
		return fmt.Errorf("%w: %s", ErrValidation, config.ErrPasswordRequired)
	}
	if err := g.api.DeleteAccount(ctx, password); err != nil {
		return err
	}
	g.clear(ctx)
	return nil
}

// RequestPasswordReset asks the backend to mail a reset link.
func (g *Guard) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: %s", ErrValidation, config.ErrEmailRequired)
	}
	return g.api.RequestPasswordReset(ctx, email)
}

// ResetPassword completes a reset with the token from the mailed link.
func (g *Guard) ResetPassword(ctx context.Context, r gateway.ResetRequest) error {
	if strings.TrimSpace(r.Token) == "" {
		return fmt.Errorf("%w: %s", ErrValidation, config.ErrTokenRequired)
	}
	if err := validatePassword(r.Password, r.Confirmation); err != nil {
		return err
	}
	return g.api.ResetPassword(ctx, r)
}

// VerifyEmail confirms the address of a signed verification link.
func (g *Guard) VerifyEmail(ctx context.Context, v gateway.EmailVerification) (bool, error) {
	return g.api.VerifyEmail(ctx, v)
}

func validatePassword(password, confirmation string) error {
	if utf8.RuneCountInString(password) < config.MinPasswordLength {
		return fmt.Errorf("%w: %s", ErrValidation, config.ErrPasswordShort)
	}
	if password != confirmation {
		return fmt.Errorf("%w: %s", ErrValidation, config.ErrPasswordMismatch)
	}
	return nil
}

// establish persists s and marks the guard Authenticated. A persistence
// failure still leaves the session usable for this run. Listeners run after
// the write so a teardown they trigger is not overwritten.
func (g *Guard) establish(ctx context.Context, s Session) error {
	var persistErr error
	ttl := config.SessionDefaultTTL
	if s.ExpiresAt != nil {
		ttl = time.UnixMilli(*s.ExpiresAt).Sub(g.clock.Now())
		if ttl <= 0 {
			ttl = -1
		}
	}
	if data, err := json.Marshal(s); err != nil {
		persistErr = fmt.Errorf("%s: %w", config.ErrSessionWrite, err)
	} else if err := g.storage.Set(ctx, config.StorageKeySession, string(data), ttl); err != nil {
		persistErr = fmt.Errorf("%s: %w", config.ErrSessionWrite, err)
	}

	g.set(&s, Authenticated)
	return persistErr
}

// clear drops the session and its persisted copy.
func (g *Guard) clear(ctx context.Context) {
	g.set(nil, Unauthenticated)
	if err := g.storage.Delete(context.WithoutCancel(ctx), config.StorageKeySession); err != nil {
		g.log.Warn(config.ErrSessionWrite, config.LogKeyError, err)
		return
	}
	g.log.Info(config.MsgSessionCleared)
}

func (g *Guard) set(s *Session, st State) {
	g.mu.Lock()
	changed := g.state != st || (g.session == nil) != (s == nil) ||
		(s != nil && g.session != nil && *g.session != *s)
	g.session = s
	g.state = st
	listeners := slices.Clone(g.listeners)
	g.mu.Unlock()

	if !changed {
		return
	}
	var snapshot Session
	if s != nil {
		snapshot = *s
	}
	g.log.Debug(config.MsgSessionState, config.LogKeyState, st.String())
	for _, fn := range listeners {
		fn(snapshot, st)
	}
}
