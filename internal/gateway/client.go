// Package gateway is the remote data gateway: it issues the HTTP calls for
// authentication, contacts and address lookup, and unwraps the response
// envelopes the backend uses.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tartampluch/go-contacts/internal/config"
)

// ErrUnauthorized matches any APIError carrying a 401 status.
var ErrUnauthorized = errors.New(config.ErrUnauthorized)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %d: %s", config.ErrUnexpectedStatus, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", config.ErrUnexpectedStatus, e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// IsCanceled reports whether err comes from a cancelled request, as opposed
// to a genuine failure. Cancelled lookups are not surfaced as errors.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func() string

// Request describes one JSON call relative to the client base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Client implements the JSON transport shared by every API of this package.
type Client struct {
	HTTP    *http.Client
	baseURL *url.URL
	token   TokenSource

	mu           sync.RWMutex
	unauthorized []func()
}

// NewClient creates a client for baseURL with configured timeouts.
// Only http and https URLs are accepted.
func NewClient(baseURL string, token TokenSource) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	return &Client{
		HTTP: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		baseURL: u,
		token:   token,
	}, nil
}

// SetTokenSource replaces the bearer token provider.
func (c *Client) SetTokenSource(token TokenSource) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// OnUnauthorized registers fn to run whenever the server answers 401. This is
// the global signal used for server-initiated session termination.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.unauthorized = append(c.unauthorized, fn)
	c.mu.Unlock()
}

// Do performs the request and decodes the JSON response into a generic value
// (maps, slices, float64, string, bool). An empty body decodes to nil.
func (c *Client) Do(ctx context.Context, r Request) (any, error) {
	target := c.baseURL.JoinPath(r.Path)
	if len(r.Query) > 0 {
		target.RawQuery = r.Query.Encode()
	}

	// Query strings may carry personal data: log the path only.
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompGateway),
		slog.String(config.LogKeyMethod, r.Method),
		slog.String(config.LogKeyURL, target.Scheme+"://"+target.Host+target.Path),
	)

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrRequestEncode, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRequestBuild, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeJSON)
	if body != nil {
		req.Header.Set(config.HeaderContentType, config.MimeJSON)
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set(config.HeaderAuthorization, config.BearerPrefix+token)
	}

	log.Debug(config.MsgRequest)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w", config.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %w", config.ErrResponseRead, err)
	}

	var decoded any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("%s: %w", config.ErrResponseDecode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: messageOf(decoded)}
		log.Warn(config.MsgRequestFailed, slog.Int(config.LogKeyStatus, resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized {
			log.Info(config.MsgUnauthorized)
			c.signalUnauthorized()
		}
		return nil, apiErr
	}

	return decoded, nil
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == nil {
		return ""
	}
	return token()
}

func (c *Client) signalUnauthorized() {
	c.mu.RLock()
	handlers := make([]func(), len(c.unauthorized))
	copy(handlers, c.unauthorized)
	c.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
}
