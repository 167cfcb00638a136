// Package store holds the in-memory contact list of the authenticated user.
// Mutations are applied locally first and confirmed against the backend in
// the background.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
	"github.com/tartampluch/go-contacts/internal/gateway"
)

var (
	// ErrContactNotFound is returned for ids absent from the local list.
	ErrContactNotFound = errors.New(config.ErrContactNotFound)
	// ErrSessionEnded settles mutations whose session was reset meanwhile.
	ErrSessionEnded = errors.New(config.ErrSessionEnded)
	// ErrCreatePending rejects changes to a contact the backend has accepted
	// or is creating but whose server id is not known yet.
	ErrCreatePending = errors.New(config.ErrCreatePending)
)

// API is the subset of the contacts gateway the store relies on.
type API interface {
	List(ctx context.Context) ([]any, error)
	Create(ctx context.Context, c contact.Contact) (any, error)
	Update(ctx context.Context, id string, p contact.Patch) (any, error)
	Remove(ctx context.Context, id string) error
}

// SyncState tells whether the local copy of a contact matches the backend.
type SyncState int

const (
	// Synced means no remote write is outstanding.
	Synced SyncState = iota
	// Syncing means the local change awaits the backend.
	Syncing
	// Failed means the backend rejected the last write; the local change is
	// kept.
	Failed
	// Unconfirmed means the backend accepted a create without returning the
	// new id. The entry keeps its temporary id until the next reconciliation.
	Unconfirmed
)

func (s SyncState) String() string {
	switch s {
	case Syncing:
		return "pending"
	case Failed:
		return "failed"
	case Unconfirmed:
		return "unconfirmed"
	default:
		return "synced"
	}
}

// Store is the single source of truth for the contact list. It is safe for
// concurrent use.
type Store struct {
	api   API
	newID func() string

	mu        sync.RWMutex
	contacts  []contact.Contact
	status    map[string]SyncState
	selected  string
	loading   bool
	epoch     uint64
	ctx       context.Context
	cancel    context.CancelFunc
	listeners []func([]contact.Contact)

	wg sync.WaitGroup
}

// New creates an empty store backed by api.
func New(api API) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		api:      api,
		newID:    uuid.NewString,
		contacts: []contact.Contact{},
		status:   make(map[string]SyncState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe registers fn to receive a snapshot after every change. fn may be
// called from background goroutines and must not block.
func (s *Store) Subscribe(fn func([]contact.Contact)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Load replaces the list with the backend's. A failure empties the list and
// is only logged.
func (s *Store) Load(ctx context.Context) {
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompStore)

	s.mu.Lock()
	epoch := s.epoch
	s.loading = true
	s.mu.Unlock()
	s.notify()

	raw, err := s.api.List(ctx)

	s.mu.Lock()
	s.loading = false
	if epoch != s.epoch {
		s.mu.Unlock()
		log.Debug(config.MsgStaleEpoch, config.LogKeyEpoch, epoch)
		return
	}
	if err != nil {
		s.contacts = []contact.Contact{}
		s.status = make(map[string]SyncState)
		s.selected = ""
		s.mu.Unlock()
		s.notify()
		log.Warn(config.MsgContactsLoadErr, config.LogKeyError, err)
		return
	}
	s.contacts = contact.NormalizeAll(raw)
	s.status = make(map[string]SyncState)
	if !s.containsLocked(s.selected) {
		s.selected = ""
	}
	count := len(s.contacts)
	s.mu.Unlock()
	s.notify()

	log.Info(config.MsgContactsLoaded,
		config.LogKeyCount, count,
		config.LogKeyDuration, time.Since(start).Milliseconds())
}

// Refresh reloads the list and reports failures. On error the current list
// is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	raw, err := s.api.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrLoadContacts, err)
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.applyLocked(contact.NormalizeAll(raw))
	s.mu.Unlock()
	s.notify()
	return nil
}

// Reset empties the store when the session ends. Background work of the
// previous session is cancelled and its results discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.epoch++
	s.contacts = []contact.Contact{}
	s.status = make(map[string]SyncState)
	s.selected = ""
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// Drain blocks until every background confirmation has finished.
func (s *Store) Drain() {
	s.wg.Wait()
}

// Create inserts draft under a temporary id and creates it remotely. The
// temporary entry is replaced by the server entity on success and kept, with
// a Failed status, otherwise. Until the server id is known the entry cannot
// be updated or removed.
func (s *Store) Create(draft contact.Contact) *Pending {
	c := draft
	c.ID = config.TempIDPrefix + s.newID()

	s.mu.Lock()
	s.contacts = append(s.contacts, c)
	s.status[c.ID] = Syncing
	epoch, ctx := s.epoch, s.ctx
	s.mu.Unlock()
	s.notify()

	p := newPending(c)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.confirmCreate(ctx, epoch, c, p)
	}()
	return p
}

func (s *Store) confirmCreate(ctx context.Context, epoch uint64, c contact.Contact, p *Pending) {
	log := slog.With(config.LogKeyComponent, config.CompStore, config.LogKeyTempID, c.ID)

	draft := c
	draft.ID = ""
	raw, err := s.api.Create(ctx, draft)
	if err != nil {
		if !s.mark(epoch, c.ID, Failed) {
			p.settle(c, ErrSessionEnded)
			return
		}
		if !gateway.IsCanceled(err) {
			log.Warn(config.MsgCreateFailed, config.LogKeyError, err)
		}
		p.settle(c, fmt.Errorf("%s: %w", config.ErrCreateContact, err))
		return
	}

	created, ok := contact.NormalizeValue(raw)
	if !ok || created.ID == "" {
		created = c
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		p.settle(c, ErrSessionEnded)
		return
	}
	ti := s.indexLocked(c.ID)
	switch {
	case created.ID == c.ID:
		// Bare acknowledgement: the reconciliation below brings the real entry.
		s.status[c.ID] = Unconfirmed
	case s.containsLocked(created.ID):
		// A reconciliation of another write already listed the new contact.
		if ti >= 0 {
			s.contacts = slices.Delete(s.contacts, ti, ti+1)
		}
		j := s.indexLocked(created.ID)
		created = contact.Merge(s.contacts[j], created)
		s.contacts[j] = created
		delete(s.status, c.ID)
	default:
		if ti >= 0 {
			s.contacts[ti] = created
		}
		delete(s.status, c.ID)
	}
	if s.selected == c.ID {
		s.selected = created.ID
	}
	s.mu.Unlock()
	s.notify()
	log.Debug(config.MsgContactCreated, config.LogKeyID, created.ID)

	s.reconcile(ctx, epoch)
	p.settle(created, nil)
}

// Update applies patch locally and sends it to the backend. The server
// response is merged without overwriting local values with empty ones.
// Contacts whose create failed are only changed locally.
func (s *Store) Update(id string, patch contact.Patch) *Pending {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return settled(contact.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, id))
	}
	if s.awaitingIDLocked(s.contacts[i]) {
		cur := s.contacts[i]
		s.mu.Unlock()
		return settled(cur, fmt.Errorf("%w: %s", ErrCreatePending, id))
	}
	optimistic := patch.Apply(s.contacts[i])
	s.contacts[i] = optimistic
	epoch, ctx := s.epoch, s.ctx
	if optimistic.IsTemporary() {
		s.mu.Unlock()
		s.notify()
		return settled(optimistic, nil)
	}
	s.status[id] = Syncing
	s.mu.Unlock()
	s.notify()

	p := newPending(optimistic)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.confirmUpdate(ctx, epoch, optimistic, patch, p)
	}()
	return p
}

func (s *Store) confirmUpdate(ctx context.Context, epoch uint64, optimistic contact.Contact, patch contact.Patch, p *Pending) {
	log := slog.With(config.LogKeyComponent, config.CompStore, config.LogKeyID, optimistic.ID)

	raw, err := s.api.Update(ctx, optimistic.ID, patch)
	if err != nil {
		if !s.mark(epoch, optimistic.ID, Failed) {
			p.settle(optimistic, ErrSessionEnded)
			return
		}
		if !gateway.IsCanceled(err) {
			log.Warn(config.MsgUpdateFailed, config.LogKeyError, err)
		}
		p.settle(optimistic, fmt.Errorf("%s: %w", config.ErrUpdateContact, err))
		return
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		p.settle(optimistic, ErrSessionEnded)
		return
	}
	merged := optimistic
	if i := s.indexLocked(optimistic.ID); i >= 0 {
		merged = s.contacts[i]
		if server, ok := contact.NormalizeValue(raw); ok {
			merged = contact.Merge(merged, server)
			s.contacts[i] = merged
		}
	}
	delete(s.status, optimistic.ID)
	s.mu.Unlock()
	s.notify()

	s.reconcile(ctx, epoch)
	p.settle(merged, nil)
}

// Remove drops the contact locally, clears the selection if it pointed to
// it, and deletes it remotely. There is no rollback: a rejected delete is
// reported through Status and the Pending result.
func (s *Store) Remove(id string) *Pending {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return settled(contact.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, id))
	}
	if s.awaitingIDLocked(s.contacts[i]) {
		cur := s.contacts[i]
		s.mu.Unlock()
		return settled(cur, fmt.Errorf("%w: %s", ErrCreatePending, id))
	}
	removed := s.contacts[i]
	s.contacts = slices.Delete(s.contacts, i, i+1)
	if s.selected == id {
		s.selected = ""
	}
	epoch, ctx := s.epoch, s.ctx
	if removed.IsTemporary() {
		delete(s.status, id)
		s.mu.Unlock()
		s.notify()
		return settled(removed, nil)
	}
	s.status[id] = Syncing
	s.mu.Unlock()
	s.notify()

	p := newPending(removed)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.api.Remove(ctx, id)
		if err != nil {
			if !s.mark(epoch, id, Failed) {
				p.settle(removed, ErrSessionEnded)
				return
			}
			if !gateway.IsCanceled(err) {
				slog.Warn(config.MsgRemoveFailed,
					config.LogKeyComponent, config.CompStore,
					config.LogKeyID, id,
					config.LogKeyError, err)
			}
			p.settle(removed, fmt.Errorf("%s: %w", config.ErrRemoveContact, err))
			return
		}
		s.mu.Lock()
		if epoch == s.epoch {
			delete(s.status, id)
		}
		s.mu.Unlock()
		p.settle(removed, nil)
	}()
	return p
}

// Select focuses the contact with id; an empty or unknown id clears the
// selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if s.containsLocked(id) {
		s.selected = id
	} else {
		s.selected = ""
	}
	s.mu.Unlock()
	s.notify()
}

// Selected returns the focused contact, if any.
func (s *Store) Selected() (contact.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(s.selected); i >= 0 {
		return s.contacts[i], true
	}
	return contact.Contact{}, false
}

// Contacts returns a snapshot of the list in backend order.
func (s *Store) Contacts() []contact.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.contacts)
}

// Get returns the contact with id.
func (s *Store) Get(id string) (contact.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.contacts[i], true
	}
	return contact.Contact{}, false
}

// Loading reports whether a Load is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Status reports the sync state of id.
func (s *Store) Status(id string) SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[id]
}

// reconcile refetches the list after a confirmed write to pick up fields the
// server computes. Empty answers are ignored and failures only logged.
func (s *Store) reconcile(ctx context.Context, epoch uint64) {
	log := slog.With(config.LogKeyComponent, config.CompStore)

	raw, err := s.api.List(ctx)
	if err != nil {
		if !gateway.IsCanceled(err) {
			log.Warn(config.MsgReconcileErr, config.LogKeyError, err)
		}
		return
	}
	list := contact.NormalizeAll(raw)
	if len(list) == 0 {
		log.Debug(config.MsgReconcileSkip)
		return
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		log.Debug(config.MsgStaleEpoch, config.LogKeyEpoch, epoch)
		return
	}
	s.applyLocked(list)
	s.mu.Unlock()
	s.notify()
	log.Debug(config.MsgReconcile, config.LogKeyCount, len(list))
}

// applyLocked installs a server list. Local entries the server cannot know
// about yet (temporary ids still pending or failed) are carried over, and
// entries with an outstanding local change keep their local value. Accepted
// creates are dropped since the list now carries them under their real id.
func (s *Store) applyLocked(list []contact.Contact) {
	next := make([]contact.Contact, 0, len(list))
	for _, c := range list {
		if s.status[c.ID] != Synced {
			if i := s.indexLocked(c.ID); i >= 0 {
				c = s.contacts[i]
			}
		}
		next = append(next, c)
	}
	for _, c := range s.contacts {
		if !c.IsTemporary() {
			continue
		}
		switch s.status[c.ID] {
		case Syncing, Failed:
			next = append(next, c)
		default:
			delete(s.status, c.ID)
		}
	}
	s.contacts = next
	if !s.containsLocked(s.selected) {
		s.selected = ""
	}
}

// mark records st for id unless the session changed. It reports
// whether the epoch is still current.
func (s *Store) mark(epoch uint64, id string, st SyncState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.status[id] = st
	return true
}

// awaitingIDLocked reports whether c is a temporary entry the backend may
// already hold under an id the store does not know yet.
func (s *Store) awaitingIDLocked(c contact.Contact) bool {
	if !c.IsTemporary() {
		return false
	}
	st := s.status[c.ID]
	return st == Syncing || st == Unconfirmed
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.contacts, func(c contact.Contact) bool { return c.ID == id })
}

func (s *Store) containsLocked(id string) bool {
	return s.indexLocked(id) >= 0
}

func (s *Store) notify() {
	s.mu.RLock()
	snapshot := slices.Clone(s.contacts)
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
