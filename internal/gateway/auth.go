package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
)

// ErrIncompleteLogin is returned when a login response lacks the user or the
// token.
var ErrIncompleteLogin = errors.New(config.ErrIncompleteLogin)

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResult is the normalized login response. ExpiresAt is epoch millis.
type LoginResult struct {
	User      User
	Token     string
	ExpiresAt *int64
}

// VerifyResult reports whether the current token is still accepted.
type VerifyResult struct {
	Valid     bool
	User      *User
	ExpiresAt *int64
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"password_confirmation"`
}

// RegisterResult is the backend acknowledgement of a sign-up.
type RegisterResult struct {
	Success bool
	Message string
}

// ProfilePatch lists the profile fields to change.
type ProfilePatch struct {
	Name *string `json:"name,omitempty"`
}

// ProfileResult is the backend response to a profile update. User is nil
// when the backend only acknowledges.
type ProfileResult struct {
	Success bool
	User    *User
}

// ResetRequest completes a password reset.
type ResetRequest struct {
	Token        string `json:"token"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password"`
	Confirmation string `json:"password_confirmation"`
}

// EmailVerification holds the parameters of a signed verification link.
type EmailVerification struct {
	ID        string
	Hash      string
	Expires   string
	Signature string
}

// AuthAPI exposes the /auth endpoints.
type AuthAPI struct {
	client *Client
}

// NewAuthAPI binds the auth endpoints to client.
func NewAuthAPI(client *Client) *AuthAPI {
	return &AuthAPI{client: client}
}

// Login exchanges credentials for a token. Both user and token must be
// present in the response.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (LoginResult, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   config.RouteLogin,
		Body:   map[string]string{config.FieldEmail: email, config.FieldPassword: password},
	})
	if err != nil {
		return LoginResult{}, err
	}

	user := userOf(first(dig(resp, config.FieldData, config.FieldUser), dig(resp, config.FieldUser)))
	token, _ := first(dig(resp, config.FieldData, config.FieldToken), dig(resp, config.FieldToken)).(string)
	if user == nil || token == "" {
		if msg := messageOf(resp); msg != "" {
			return LoginResult{}, fmt.Errorf("%w: %s", ErrIncompleteLogin, msg)
		}
		return LoginResult{}, ErrIncompleteLogin
	}

	return LoginResult{
		User:  *user,
		Token: token,
		ExpiresAt: parseExpiry(first(
			dig(resp, config.FieldData, config.FieldExpiration, config.FieldExpiresAt),
			dig(resp, config.FieldExpiresAt),
			dig(resp, config.FieldExpiresCml),
		)),
	}, nil
}

// Register creates an account. It does not authenticate.
func (a *AuthAPI) Register(ctx context.Context, r RegisterRequest) (RegisterResult, error) {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodPost, Path: config.RouteRegister, Body: r})
	if err != nil {
		return RegisterResult{}, err
	}
	obj, _ := resp.(map[string]any)
	return RegisterResult{
		Success: boolOf(obj, config.FieldSuccess),
		Message: messageOf(obj),
	}, nil
}

// Logout notifies the backend that the token is no longer used.
func (a *AuthAPI) Logout(ctx context.Context) error {
	_, err := a.client.Do(ctx, Request{Method: http.MethodPost, Path: config.RouteLogout})
	return err
}

// Verify checks the current token against the backend. Any failure, network
// errors included, reports the token as invalid.
func (a *AuthAPI) Verify(ctx context.Context) VerifyResult {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: config.RouteUser})
	if err != nil {
		return VerifyResult{Valid: false}
	}
	return VerifyResult{
		Valid: true,
		User:  userOf(first(dig(resp, config.FieldData, config.FieldUser), dig(resp, config.FieldUser))),
		ExpiresAt: parseExpiry(first(
			dig(resp, config.FieldExp),
			dig(resp, config.FieldExpiresCml),
			dig(resp, config.FieldData, config.FieldExpiration, config.FieldExpiresAt),
		)),
	}
}

// UpdateProfile changes account fields.
func (a *AuthAPI) UpdateProfile(ctx context.Context, p ProfilePatch) (ProfileResult, error) {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodPut, Path: config.RouteUser, Body: p})
	if err != nil {
		return ProfileResult{}, err
	}
	obj, _ := resp.(map[string]any)
	return ProfileResult{
		Success: boolOf(obj, config.FieldSuccess),
		User:    userOf(first(dig(resp, config.FieldUser), dig(resp, config.FieldData, config.FieldUser))),
	}, nil
}

// DeleteAccount removes the account after password confirmation.
func (a *AuthAPI) DeleteAccount(ctx context.Context, password string) error {
	_, err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   config.RouteDeleteAccount,
		Body:   map[string]string{config.FieldPassword: password},
	})
	return err
}

// RequestPasswordReset sends a reset link to email.
func (a *AuthAPI) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   config.RouteForgotPassword,
		Body:   map[string]string{config.FieldEmail: email},
	})
	return err
}

// ResetPassword completes a reset started by RequestPasswordReset.
func (a *AuthAPI) ResetPassword(ctx context.Context, r ResetRequest) error {
	_, err := a.client.Do(ctx, Request{Method: http.MethodPost, Path: config.RouteResetPassword, Body: r})
	return err
}

// VerifyEmail confirms an address from a signed link.
func (a *AuthAPI) VerifyEmail(ctx context.Context, v EmailVerification) (bool, error) {
	resp, err := a.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   config.RouteVerifyEmail,
		Query: url.Values{
			"expires":   {v.Expires},
			"hash":      {v.Hash},
			"id":        {v.ID},
			"signature": {v.Signature},
		},
	})
	if err != nil {
		return false, err
	}
	obj, _ := resp.(map[string]any)
	return boolOf(obj, config.FieldSuccess), nil
}

// userOf converts a user object; nil when v is not an object.
func userOf(v any) *User {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &User{
		ID:    contact.Text(obj, config.FieldID),
		Name:  contact.Text(obj, config.FieldName),
		Email: contact.Text(obj, config.FieldEmail),
	}
}
