package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-contacts/internal/contact"
	"github.com/tartampluch/go-contacts/internal/store"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockAPI simulates the contacts gateway using `testify/mock`.
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) List(ctx context.Context) ([]any, error) {
	args := m.Called(ctx)
	if l := args.Get(0); l != nil {
		return l.([]any), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAPI) Create(ctx context.Context, c contact.Contact) (any, error) {
	args := m.Called(ctx, c)
	return args.Get(0), args.Error(1)
}

func (m *MockAPI) Update(ctx context.Context, id string, p contact.Patch) (any, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0), args.Error(1)
}

func (m *MockAPI) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func rec(id, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

func wait(t *testing.T, p *store.Pending) (contact.Contact, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "mutation never settled")
	return c, err
}

func names(list []contact.Contact) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

// -----------------------------------------------------------------------------
// Load
// -----------------------------------------------------------------------------

func TestLoad_ReplacesList(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana"), "garbage", rec("2", "Bia")}, nil)
	s := store.New(api)

	s.Load(context.Background())

	assert.Equal(t, []string{"Ana", "Bia"}, names(s.Contacts()))
	assert.False(t, s.Loading())
}

func TestLoad_FailureDegradesToEmpty(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana")}, nil).Once()
	api.On("List", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	s := store.New(api)

	s.Load(context.Background())
	s.Select("1")
	require.Len(t, s.Contacts(), 1)

	s.Load(context.Background())

	assert.Empty(t, s.Contacts())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestRefresh_FailureKeepsList(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana")}, nil).Once()
	api.On("List", mock.Anything).Return(nil, errors.New("boom")).Once()
	s := store.New(api)
	s.Load(context.Background())

	err := s.Refresh(context.Background())

	assert.Error(t, err)
	assert.Equal(t, []string{"Ana"}, names(s.Contacts()))
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

func TestCreate_OptimisticThenServerID(t *testing.T) {
	gate := make(chan time.Time)
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.MatchedBy(func(c contact.Contact) bool {
		return c.Name == "Ana" && c.ID == ""
	})).WaitUntil(gate).Return(rec("srv_1", "Ana"), nil)
	api.On("List", mock.Anything).Return([]any{rec("srv_1", "Ana")}, nil)
	s := store.New(api)

	p := s.Create(contact.Contact{Name: "Ana"})

	// Remote call pending: the draft is already listed under a temporary id.
	list := s.Contacts()
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].Name)
	assert.True(t, list[0].IsTemporary())
	assert.Equal(t, list[0], p.Optimistic())
	assert.Equal(t, store.Syncing, s.Status(list[0].ID))

	close(gate)
	created, err := wait(t, p)

	require.NoError(t, err)
	assert.Equal(t, "srv_1", created.ID)
	list = s.Contacts()
	require.Len(t, list, 1, "exactly one Ana after confirmation")
	assert.Equal(t, "srv_1", list[0].ID)
	assert.Equal(t, store.Synced, s.Status("srv_1"))
}

func TestCreate_EmptyReconciliationIsIgnored(t *testing.T) {
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).Return(rec("srv_9", "Ana"), nil)
	api.On("List", mock.Anything).Return([]any{}, nil)
	s := store.New(api)

	_, err := wait(t, s.Create(contact.Contact{Name: "Ana"}))

	require.NoError(t, err)
	list := s.Contacts()
	require.Len(t, list, 1)
	assert.Equal(t, "srv_9", list[0].ID)
}

func TestCreate_FailureKeepsOptimisticEntry(t *testing.T) {
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
	s := store.New(api)

	p := s.Create(contact.Contact{Name: "Ana"})
	kept, err := wait(t, p)

	require.Error(t, err)
	assert.Equal(t, p.Optimistic(), kept, "caller receives the optimistic contact")
	list := s.Contacts()
	require.Len(t, list, 1)
	assert.Equal(t, store.Failed, s.Status(list[0].ID))
	api.AssertNotCalled(t, "List", mock.Anything)
}

func TestCreate_FailedTemporaryEntrySurvivesReconciliation(t *testing.T) {
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.MatchedBy(func(c contact.Contact) bool { return c.Name == "Lost" })).
		Return(nil, errors.New("500"))
	api.On("Create", mock.Anything, mock.MatchedBy(func(c contact.Contact) bool { return c.Name == "Bia" })).
		Return(rec("srv_2", "Bia"), nil)
	api.On("List", mock.Anything).Return([]any{rec("srv_2", "Bia")}, nil)
	s := store.New(api)

	_, err := wait(t, s.Create(contact.Contact{Name: "Lost"}))
	require.Error(t, err)
	_, err = wait(t, s.Create(contact.Contact{Name: "Bia"}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Bia", "Lost"}, names(s.Contacts()))
}

func TestCreate_OverlappingCreatesKeepOneEntryPerID(t *testing.T) {
	gate := make(chan time.Time)
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.MatchedBy(func(c contact.Contact) bool { return c.Name == "Bia" })).
		WaitUntil(gate).Return(rec("2", "Bia"), nil)
	api.On("Create", mock.Anything, mock.MatchedBy(func(c contact.Contact) bool { return c.Name == "Ana" })).
		Return(rec("1", "Ana"), nil)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana"), rec("2", "Bia")}, nil).Once()
	api.On("List", mock.Anything).Return(nil, errors.New("reconcile down"))
	s := store.New(api)

	bia := s.Create(contact.Contact{Name: "Bia"})
	_, err := wait(t, s.Create(contact.Contact{Name: "Ana"}))
	require.NoError(t, err)
	require.Len(t, s.Contacts(), 3, "Bia is listed by the server and still pending locally")

	close(gate)
	created, err := wait(t, bia)

	require.NoError(t, err)
	assert.Equal(t, "2", created.ID)
	ids := make([]string, 0, 2)
	for _, c := range s.Contacts() {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
	assert.Equal(t, store.Synced, s.Status(bia.Optimistic().ID))
}

func TestCreate_PendingEntryRejectsChanges(t *testing.T) {
	gate := make(chan time.Time)
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).WaitUntil(gate).Return(rec("srv_1", "Ana"), nil)
	api.On("List", mock.Anything).Return([]any{rec("srv_1", "Ana")}, nil)
	api.On("Remove", mock.Anything, "srv_1").Return(nil)
	s := store.New(api)

	p := s.Create(contact.Contact{Name: "Ana"})
	tmp := p.Optimistic().ID

	_, err := wait(t, s.Update(tmp, contact.Patch{Name: contact.String("Nova")}))
	assert.ErrorIs(t, err, store.ErrCreatePending)
	_, err = wait(t, s.Remove(tmp))
	assert.ErrorIs(t, err, store.ErrCreatePending)
	assert.Equal(t, []string{"Ana"}, names(s.Contacts()), "rejected changes are not applied")

	close(gate)
	created, err := wait(t, p)
	require.NoError(t, err)

	_, err = wait(t, s.Remove(tmp))
	assert.ErrorIs(t, err, store.ErrContactNotFound, "the temporary id is gone once confirmed")
	_, err = wait(t, s.Remove(created.ID))
	require.NoError(t, err)
	api.AssertCalled(t, "Remove", mock.Anything, "srv_1")
	api.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_ConfirmedEntryIsUpdatedRemotely(t *testing.T) {
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).Return(rec("srv_1", "Ana"), nil)
	api.On("List", mock.Anything).Return([]any{rec("srv_1", "Ana")}, nil).Once()
	api.On("Update", mock.Anything, "srv_1", mock.Anything).Return(rec("srv_1", "Nova"), nil)
	api.On("List", mock.Anything).Return([]any{rec("srv_1", "Nova")}, nil)
	s := store.New(api)

	created, err := wait(t, s.Create(contact.Contact{Name: "Ana"}))
	require.NoError(t, err)

	got, err := wait(t, s.Update(created.ID, contact.Patch{Name: contact.String("Nova")}))

	require.NoError(t, err)
	assert.Equal(t, "Nova", got.Name)
	assert.Equal(t, []string{"Nova"}, names(s.Contacts()))
	api.AssertCalled(t, "Update", mock.Anything, "srv_1", mock.Anything)
}

func TestCreate_AcknowledgementWithoutIDStaysUnconfirmed(t *testing.T) {
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).Return(map[string]any{"success": true}, nil)
	api.On("List", mock.Anything).Return(nil, errors.New("reconcile down")).Once()
	api.On("List", mock.Anything).Return([]any{rec("srv_5", "Ana")}, nil).Once()
	s := store.New(api)

	p := s.Create(contact.Contact{Name: "Ana"})
	_, err := wait(t, p)
	require.NoError(t, err, "the backend accepted the contact")
	tmp := p.Optimistic().ID

	assert.Equal(t, store.Unconfirmed, s.Status(tmp))
	_, err = wait(t, s.Update(tmp, contact.Patch{Name: contact.String("Nova")}))
	assert.ErrorIs(t, err, store.ErrCreatePending)
	api.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, s.Refresh(context.Background()))

	list := s.Contacts()
	require.Len(t, list, 1, "the server copy replaces the accepted draft")
	assert.Equal(t, "srv_5", list[0].ID)
	assert.Equal(t, store.Synced, s.Status(tmp))
}

// -----------------------------------------------------------------------------
// Update
// -----------------------------------------------------------------------------

func TestUpdate_NonDestructiveMerge(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("c1", "Old")}, nil).Once()
	api.On("Update", mock.Anything, "c1", mock.Anything).
		Return(map[string]any{"name": "", "email": "x@y.com"}, nil)
	api.On("List", mock.Anything).Return(nil, errors.New("reconcile down")).Once()
	s := store.New(api)
	s.Load(context.Background())

	p := s.Update("c1", contact.Patch{Name: contact.String("Nova")})
	assert.Equal(t, "Nova", p.Optimistic().Name)

	got, err := wait(t, p)

	require.NoError(t, err, "reconciliation failures are not surfaced")
	assert.Equal(t, "Nova", got.Name)
	assert.Equal(t, "x@y.com", got.Email)
	stored, ok := s.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Nova", stored.Name)
	assert.Equal(t, "x@y.com", stored.Email)
}

func TestUpdate_FailureKeepsLocalChange(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("c1", "Old")}, nil).Once()
	api.On("Update", mock.Anything, "c1", mock.Anything).Return(nil, errors.New("422"))
	s := store.New(api)
	s.Load(context.Background())

	_, err := wait(t, s.Update("c1", contact.Patch{Name: contact.String("Nova")}))

	require.Error(t, err)
	stored, _ := s.Get("c1")
	assert.Equal(t, "Nova", stored.Name, "no rollback")
	assert.Equal(t, store.Failed, s.Status("c1"))
}

func TestUpdate_UnknownID(t *testing.T) {
	s := store.New(new(MockAPI))

	_, err := wait(t, s.Update("missing", contact.Patch{}))

	assert.ErrorIs(t, err, store.ErrContactNotFound)
}

// -----------------------------------------------------------------------------
// Remove & Select
// -----------------------------------------------------------------------------

func TestRemove_ClearsSelection(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana"), rec("2", "Bia")}, nil)
	api.On("Remove", mock.Anything, "1").Return(nil)
	s := store.New(api)
	s.Load(context.Background())
	s.Select("1")

	p := s.Remove("1")

	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Equal(t, []string{"Bia"}, names(s.Contacts()))
	_, err := wait(t, p)
	require.NoError(t, err)
	assert.Equal(t, store.Synced, s.Status("1"))
}

func TestRemove_FailureIsNotRolledBack(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana")}, nil)
	api.On("Remove", mock.Anything, "1").Return(errors.New("500"))
	s := store.New(api)
	s.Load(context.Background())

	_, err := wait(t, s.Remove("1"))

	require.Error(t, err)
	assert.Empty(t, s.Contacts())
	assert.Equal(t, store.Failed, s.Status("1"))
}

func TestSelect_UnknownIDClears(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana")}, nil)
	s := store.New(api)
	s.Load(context.Background())

	s.Select("1")
	c, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "Ana", c.Name)

	s.Select("nope")
	_, ok = s.Selected()
	assert.False(t, ok)
}

// -----------------------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------------------

func TestReset_DiscardsInFlightResults(t *testing.T) {
	gate := make(chan time.Time)
	api := new(MockAPI)
	api.On("Create", mock.Anything, mock.Anything).WaitUntil(gate).Return(rec("srv_1", "Ana"), nil)
	s := store.New(api)

	p := s.Create(contact.Contact{Name: "Ana"})
	s.Reset()
	close(gate)

	_, err := wait(t, p)
	s.Drain()

	assert.ErrorIs(t, err, store.ErrSessionEnded)
	assert.Empty(t, s.Contacts(), "results of a previous session are discarded")
	api.AssertNotCalled(t, "List", mock.Anything)
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	api := new(MockAPI)
	api.On("List", mock.Anything).Return([]any{rec("1", "Ana")}, nil)
	s := store.New(api)

	var last atomic.Value
	var calls atomic.Int32
	s.Subscribe(func(list []contact.Contact) {
		calls.Add(1)
		last.Store(names(list))
	})

	s.Load(context.Background())

	assert.GreaterOrEqual(t, calls.Load(), int32(2), "loading start and completion")
	assert.Equal(t, []string{"Ana"}, last.Load())
}

func TestSyncState_String(t *testing.T) {
	assert.Equal(t, "synced", store.Synced.String())
	assert.Equal(t, "pending", store.Syncing.String())
	assert.Equal(t, "failed", store.Failed.String())
	assert.Equal(t, "unconfirmed", store.Unconfirmed.String())
}
