package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/gateway"
	"github.com/tartampluch/go-contacts/internal/session"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockAuth simulates the auth gateway using `testify/mock`.
type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) Login(ctx context.Context, email, password string) (gateway.LoginResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(gateway.LoginResult), args.Error(1)
}

func (m *MockAuth) Register(ctx context.Context, r gateway.RegisterRequest) (gateway.RegisterResult, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(gateway.RegisterResult), args.Error(1)
}

func (m *MockAuth) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAuth) Verify(ctx context.Context) gateway.VerifyResult {
	return m.Called(ctx).Get(0).(gateway.VerifyResult)
}

func (m *MockAuth) UpdateProfile(ctx context.Context, p gateway.ProfilePatch) (gateway.ProfileResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(gateway.ProfileResult), args.Error(1)
}

func (m *MockAuth) DeleteAccount(ctx context.Context, password string) error {
	return m.Called(ctx, password).Error(0)
}

func (m *MockAuth) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuth) ResetPassword(ctx context.Context, r gateway.ResetRequest) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockAuth) VerifyEmail(ctx context.Context, v gateway.EmailVerification) (bool, error) {
	args := m.Called(ctx, v)
	return args.Bool(0), args.Error(1)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func persist(t *testing.T, st session.Storage, s session.Session) {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), config.StorageKeySession, string(data), 0))
}

func stored(t *testing.T, st session.Storage) (session.Session, bool) {
	t.Helper()
	raw, err := st.Get(context.Background(), config.StorageKeySession)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, false
	}
	require.NoError(t, err)
	var s session.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s, true
}

var ana = gateway.User{ID: "1", Name: "Ana", Email: "ana@example.com"}

// -----------------------------------------------------------------------------
// Init
// -----------------------------------------------------------------------------

func TestInit_NoPersistedSession(t *testing.T) {
	api := new(MockAuth)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})

	require.NoError(t, g.Init(context.Background()))

	assert.Equal(t, session.Unauthenticated, g.State())
	api.AssertNotCalled(t, "Verify", mock.Anything)
}

func TestInit_ExpiredSessionIsDiscarded(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	persist(t, st, session.Session{User: ana, Token: "tk", ExpiresAt: millis(now.Add(-time.Minute))})
	g := session.NewGuard(api, st, MockClock{now})

	require.NoError(t, g.Init(context.Background()))

	assert.False(t, g.Authenticated())
	assert.Equal(t, session.Unauthenticated, g.State())
	_, ok := stored(t, st)
	assert.False(t, ok, "persisted storage is cleared")
	api.AssertNotCalled(t, "Verify", mock.Anything)
}

func TestInit_ValidSessionIsRefreshed(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	persist(t, st, session.Session{User: ana, Token: "tk", ExpiresAt: millis(now.Add(time.Hour))})
	renamed := ana
	renamed.Name = "Ana Maria"
	api.On("Verify", mock.Anything).Return(gateway.VerifyResult{Valid: true, User: &renamed, ExpiresAt: millis(now.Add(2 * time.Hour))})

	g := session.NewGuard(api, st, MockClock{now})
	var states []session.State
	g.Subscribe(func(_ session.Session, s session.State) { states = append(states, s) })

	require.NoError(t, g.Init(context.Background()))

	assert.Equal(t, []session.State{session.Verifying, session.Authenticated}, states)
	assert.True(t, g.Authenticated())
	s, ok := stored(t, st)
	require.True(t, ok)
	assert.Equal(t, "Ana Maria", s.User.Name)
	assert.Equal(t, "tk", s.Token)
	assert.Equal(t, now.Add(2*time.Hour).UnixMilli(), *s.ExpiresAt)
}

func TestInit_RejectedSessionIsCleared(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	persist(t, st, session.Session{User: ana, Token: "tk"})
	api.On("Verify", mock.Anything).Return(gateway.VerifyResult{Valid: false})
	g := session.NewGuard(api, st, MockClock{now})

	require.NoError(t, g.Init(context.Background()))

	assert.Equal(t, session.Unauthenticated, g.State())
	assert.Empty(t, g.Token())
	_, ok := stored(t, st)
	assert.False(t, ok)
}

func TestInit_CorruptRecordIsCleared(t *testing.T) {
	st := session.NewMemoryStorage()
	require.NoError(t, st.Set(context.Background(), config.StorageKeySession, "{not json", 0))
	g := session.NewGuard(new(MockAuth), st, MockClock{now})

	require.NoError(t, g.Init(context.Background()))

	assert.Equal(t, session.Unauthenticated, g.State())
	_, ok := stored(t, st)
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------
// Login / Logout
// -----------------------------------------------------------------------------

func TestLogin_PersistsSession(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	api.On("Login", mock.Anything, "ana@example.com", "secret").
		Return(gateway.LoginResult{User: ana, Token: "tk", ExpiresAt: millis(now.Add(time.Hour))}, nil)
	g := session.NewGuard(api, st, MockClock{now})

	s, err := g.Login(context.Background(), " ana@example.com ", "secret")

	require.NoError(t, err)
	assert.Equal(t, "tk", s.Token)
	assert.Equal(t, session.Authenticated, g.State())
	assert.Equal(t, "tk", g.Token())
	persisted, ok := stored(t, st)
	require.True(t, ok)
	assert.Equal(t, ana, persisted.User)
}

func TestLogin_IncompleteResponse(t *testing.T) {
	api := new(MockAuth)
	api.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(gateway.LoginResult{}, gateway.ErrIncompleteLogin)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})

	_, err := g.Login(context.Background(), "a@b.c", "pw")

	assert.ErrorIs(t, err, session.ErrIncompleteLogin)
	assert.Equal(t, session.Unauthenticated, g.State())
}

func TestLogin_ValidatesLocally(t *testing.T) {
	api := new(MockAuth)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})

	_, err := g.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, session.ErrValidation)
	_, err = g.Login(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, session.ErrValidation)
	api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_IgnoresRemoteFailure(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	api.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(gateway.LoginResult{User: ana, Token: "tk"}, nil)
	api.On("Logout", mock.Anything).Return(errors.New("offline"))
	g := session.NewGuard(api, st, MockClock{now})
	_, err := g.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	g.Logout(context.Background())

	assert.Equal(t, session.Unauthenticated, g.State())
	_, ok := stored(t, st)
	assert.False(t, ok)
	api.AssertCalled(t, "Logout", mock.Anything)
}

func TestHandleUnauthorized_ClearsWithoutRemoteCall(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	api.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(gateway.LoginResult{User: ana, Token: "tk"}, nil)
	g := session.NewGuard(api, st, MockClock{now})
	_, err := g.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	var last session.State = -1
	g.Subscribe(func(_ session.Session, s session.State) { last = s })

	g.HandleUnauthorized()

	assert.Equal(t, session.Unauthenticated, last)
	assert.False(t, g.Authenticated())
	_, ok := stored(t, st)
	assert.False(t, ok)
	api.AssertNotCalled(t, "Logout", mock.Anything)
}

func TestState_ReportsExpiry(t *testing.T) {
	clock := &MockClock{now}
	api := new(MockAuth)
	api.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.LoginResult{User: ana, Token: "tk", ExpiresAt: millis(now.Add(time.Minute))}, nil)
	g := session.NewGuard(api, session.NewMemoryStorage(), clock)
	_, err := g.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	clock.CurrentTime = now.Add(2 * time.Minute)

	assert.Equal(t, session.Expired, g.State())
	assert.False(t, g.Authenticated())
}

// -----------------------------------------------------------------------------
// Profile & account
// -----------------------------------------------------------------------------

func loggedIn(t *testing.T, api *MockAuth, st session.Storage) *session.Guard {
	t.Helper()
	api.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.LoginResult{User: ana, Token: "tk", ExpiresAt: millis(now.Add(time.Hour))}, nil)
	g := session.NewGuard(api, st, MockClock{now})
	_, err := g.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	return g
}

func TestUpdateProfile_FallsBackToLocalMerge(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	g := loggedIn(t, api, st)
	name := "Ana Paula"
	api.On("UpdateProfile", mock.Anything, gateway.ProfilePatch{Name: &name}).Return(gateway.ProfileResult{Success: true}, nil)

	user, err := g.UpdateProfile(context.Background(), gateway.ProfilePatch{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", user.Name)
	s, _ := stored(t, st)
	assert.Equal(t, "Ana Paula", s.User.Name)
	assert.Equal(t, "tk", s.Token, "token and expiry are preserved")
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), *s.ExpiresAt)
}

func TestUpdateProfile_PrefersServerUser(t *testing.T) {
	api := new(MockAuth)
	g := loggedIn(t, api, session.NewMemoryStorage())
	name := "Typed"
	server := gateway.User{ID: "1", Name: "Server Name", Email: "new@example.com"}
	api.On("UpdateProfile", mock.Anything, mock.Anything).Return(gateway.ProfileResult{Success: true, User: &server}, nil)

	user, err := g.UpdateProfile(context.Background(), gateway.ProfilePatch{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, server, user)
}

func TestUpdateProfile_RequiresSession(t *testing.T) {
	g := session.NewGuard(new(MockAuth), session.NewMemoryStorage(), MockClock{now})
	name := "x"

	_, err := g.UpdateProfile(context.Background(), gateway.ProfilePatch{Name: &name})

	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  gateway.RegisterRequest
	}{
		{"NoName", gateway.RegisterRequest{Email: "a@b.c", Password: "1234", Confirmation: "1234"}},
		{"NoEmail", gateway.RegisterRequest{Name: "Ana", Password: "1234", Confirmation: "1234"}},
		{"ShortPassword", gateway.RegisterRequest{Name: "Ana", Email: "a@b.c", Password: "123", Confirmation: "123"}},
		{"Mismatch", gateway.RegisterRequest{Name: "Ana", Email: "a@b.c", Password: "1234", Confirmation: "4321"}},
	}
	api := new(MockAuth)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, session.ErrValidation)
		})
	}
	api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestRegister_DoesNotAuthenticate(t *testing.T) {
	api := new(MockAuth)
	api.On("Register", mock.Anything, mock.Anything).Return(gateway.RegisterResult{Success: true, Message: "check your inbox"}, nil)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})

	res, err := g.Register(context.Background(), gateway.RegisterRequest{Name: "Ana", Email: "a@b.c", Password: "1234", Confirmation: "1234"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, session.Unauthenticated, g.State())
}

func TestDeleteAccount_ClearsSession(t *testing.T) {
	api := new(MockAuth)
	st := session.NewMemoryStorage()
	g := loggedIn(t, api, st)
	api.On("DeleteAccount", mock.Anything, "pw").Return(nil)

	require.NoError(t, g.DeleteAccount(context.Background(), "pw"))

	assert.Equal(t, session.Unauthenticated, g.State())
	_, ok := stored(t, st)
	assert.False(t, ok)
}

func TestDeleteAccount_FailureKeepsSession(t *testing.T) {
	api := new(MockAuth)
	g := loggedIn(t, api, session.NewMemoryStorage())
	api.On("DeleteAccount", mock.Anything, "wrong").Return(&gateway.APIError{Status: 422})

	assert.Error(t, g.DeleteAccount(context.Background(), "wrong"))
	assert.True(t, g.Authenticated())
}

func TestResetPassword_Validation(t *testing.T) {
	api := new(MockAuth)
	g := session.NewGuard(api, session.NewMemoryStorage(), MockClock{now})

	assert.ErrorIs(t, g.ResetPassword(context.Background(), gateway.ResetRequest{Password: "1234", Confirmation: "1234"}), session.ErrValidation)
	assert.ErrorIs(t, g.ResetPassword(context.Background(), gateway.ResetRequest{Token: "t", Password: "1234", Confirmation: "12345"}), session.ErrValidation)
	assert.ErrorIs(t, g.RequestPasswordReset(context.Background(), " "), session.ErrValidation)
	api.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything)
}
