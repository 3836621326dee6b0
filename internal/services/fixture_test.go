package services

import (
	"context"
	"testing"
	"time"

	"lovechat-backend/internal/memstore"
	"lovechat-backend/internal/models"

	"github.com/stretchr/testify/require"
)

const testPhrase = "end it"

type fixture struct {
	store    *memstore.Store
	bus      *LocalBus
	notifier *memstore.Notifier

	users    *UserService
	pairs    *PairService
	channels *ChannelService
	typing   *TypingSignaler
	messages *MessageService
	presence *PresenceService
	calls    *CallService
	moments  *MomentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	bus := NewLocalBus()
	notifier := &memstore.Notifier{}

	pairs := NewPairService(store.Accounts, store.Requests, bus, notifier, testPhrase)
	typing := NewTypingSignaler(store.Signals, bus, 40*time.Millisecond)
	t.Cleanup(func() { typing.Close(context.Background()) })

	return &fixture{
		store:    store,
		bus:      bus,
		notifier: notifier,
		users:    NewUserService(store.Accounts, "test-secret"),
		pairs:    pairs,
		channels: NewChannelService(store.Channels, store.Signals, bus),
		typing:   typing,
		messages: NewMessageService(store.Messages, bus, typing, 200),
		presence: NewPresenceService(store.Accounts, store.Signals, pairs, bus, 45*time.Second),
		calls:    NewCallService(store.Calls, pairs, bus, notifier, time.Minute),
		moments:  NewMomentService(store.Moments, bus),
	}
}

// single adds a single account whose pairing code is the id upper-cased and padded
func (f *fixture) single(id string) {
	f.store.Accounts.Put(&models.Account{
		ID:        id,
		Code:      codeFor(id),
		FirstName: id,
		Status:    models.StatusSingle,
		CreatedAt: time.Now(),
	})
}

func codeFor(id string) string {
	code := []byte("XXXXXX")
	for i := 0; i < len(id) && i < len(code); i++ {
		c := id[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		code[i] = c
	}
	return string(code)
}

// paired creates both accounts and links them through a request
func (f *fixture) paired(t *testing.T, a, b string) PairContext {
	t.Helper()
	ctx := context.Background()

	f.single(a)
	f.single(b)
	req, err := f.pairs.SendRequest(ctx, a, b)
	require.NoError(t, err)
	_, err = f.pairs.AcceptRequest(ctx, req.ID, b)
	require.NoError(t, err)

	f.bus.Reset()
	return NewPairContext(a, b)
}

func (f *fixture) account(t *testing.T, id string) *models.Account {
	t.Helper()
	a, err := f.store.Accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a
}
