// Package app wires the gateway, the session guard, the contacts store, the
// query engines and the feed server into one service object, and exposes it
// through command-line commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
	"github.com/tartampluch/go-contacts/internal/feedback"
	"github.com/tartampluch/go-contacts/internal/gateway"
	"github.com/tartampluch/go-contacts/internal/query"
	"github.com/tartampluch/go-contacts/internal/server"
	"github.com/tartampluch/go-contacts/internal/session"
	"github.com/tartampluch/go-contacts/internal/store"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New(config.ErrUsage)

// App is the application service object. Create it with New and release it
// with Close.
type App struct {
	// Root context of the process, used for work triggered by session
	// transitions.
	ctx context.Context
	out io.Writer
	log *slog.Logger

	addresses *gateway.AddressAPI
	storage   session.Storage
	guard     *session.Guard
	contacts  *store.Store
	search    *query.Engine[contact.Contact]
	suggest   *query.Engine[contact.Address]
	feed      *server.FeedServer
	msg       *feedback.Localizer

	mu        sync.Mutex
	lastState session.State
}

// New builds the dependency graph. Nothing touches the network until a
// command runs.
func New(ctx context.Context, settings config.Settings, storage session.Storage, out io.Writer) (*App, error) {
	client, err := gateway.NewClient(settings.APIURL, nil)
	if err != nil {
		return nil, err
	}
	contactsAPI := gateway.NewContactsAPI(client)

	a := &App{
		ctx:       ctx,
		out:       out,
		log:       slog.With(config.LogKeyComponent, config.CompApp),
		addresses: gateway.NewAddressAPI(client),
		storage:   storage,
		contacts:  store.New(contactsAPI),
		feed:      server.NewFeedServer(settings.FeedPort),
		msg:       feedback.New(settings.Language),
	}
	a.guard = session.NewGuard(gateway.NewAuthAPI(client), storage, session.RealClock{})
	a.search = query.NewContactSearch(contactsAPI, settings.SearchDelay)
	a.suggest = query.NewAddressSuggestions(a.addresses, settings.SuggestDelay)

	client.SetTokenSource(a.guard.Token)
	client.OnUnauthorized(a.guard.HandleUnauthorized)
	a.guard.Subscribe(a.onSession)
	a.contacts.Subscribe(a.onContacts)

	return a, nil
}

// Close stops the query engines and waits for pending confirmations.
func (a *App) Close() {
	a.search.Close()
	a.suggest.Close()
	a.contacts.Drain()
}

// onSession loads the contacts when a session starts and empties the store
// when it ends.
func (a *App) onSession(_ session.Session, st session.State) {
	a.mu.Lock()
	prev := a.lastState
	a.lastState = st
	a.mu.Unlock()

	switch {
	case st == session.Authenticated && prev != session.Authenticated:
		a.contacts.Load(a.ctx)
	case st == session.Unauthenticated && prev != session.Unauthenticated:
		a.contacts.Reset()
		_ = a.search.Set(query.Params{})
	}
}

// onContacts republishes the feed after every store change.
func (a *App) onContacts(list []contact.Contact) {
	if err := a.feed.Update(list); err != nil {
		a.log.Error(config.MsgFeedUpdateErr, config.LogKeyError, err)
	}
}

// OpenStorage selects the session backend named in settings. The returned
// function releases it. prefs is only used by the preferences backend.
func OpenStorage(ctx context.Context, settings config.Settings, prefs func() fyne.Preferences) (session.Storage, func(), error) {
	noop := func() {}
	slog.Debug(config.MsgStorageOpened,
		config.LogKeyComponent, config.CompApp,
		config.LogKeyBackend, settings.SessionBackend,
	)
	switch settings.SessionBackend {
	case config.SessionBackendKeyring:
		return session.NewKeyringStorage(""), noop, nil
	case config.SessionBackendPreferences:
		if prefs == nil {
			return nil, noop, errors.New(config.ErrPreferences)
		}
		p := prefs()
		if p == nil {
			return nil, noop, errors.New(config.ErrPreferences)
		}
		return session.NewPreferencesStorage(p), noop, nil
	case config.SessionBackendRedis:
		rs, err := session.NewRedisStorage(ctx, settings.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("%s: %q", config.ErrBackendUnknown, settings.SessionBackend)
	}
}
