package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lovechat-backend/internal/memstore"
	"lovechat-backend/internal/models"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	mu   sync.Mutex
	sent []*apns2.Notification
	err  error
}

func (p *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.sent = append(p.sent, n)
	return &apns2.Response{StatusCode: apns2.StatusSent}, nil
}

func TestNotifyPersistsPublishesAndPushes(t *testing.T) {
	store := memstore.New()
	bus := NewLocalBus()
	pusher := &fakePusher{}
	token := "device-token"
	store.Accounts.Put(&models.Account{ID: "bob", PushToken: &token})
	store.Accounts.Put(&models.Account{ID: "carol"})

	svc := NewNotificationService(store.Notifications, store.Accounts, bus, pusher, "com.lovechat.app")
	ctx := context.Background()

	svc.Notify(ctx, "bob", "alice", models.NotifyRequest, "alice sent you a relationship request")
	svc.Notify(ctx, "carol", "alice", models.NotifySystem, "hello")
	svc.Close()

	items, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NotifyRequest, items[0].Kind)
	assert.False(t, items[0].Read)

	assert.Len(t, bus.Sent("bob", EventNotification), 1)

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, token, pusher.sent[0].DeviceToken)
	assert.Equal(t, "com.lovechat.app", pusher.sent[0].Topic)

	n, err := svc.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	items, err = svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, items[0].Read)
}

func TestNotifySwallowsPushFailure(t *testing.T) {
	store := memstore.New()
	token := "device-token"
	store.Accounts.Put(&models.Account{ID: "bob", PushToken: &token})

	svc := NewNotificationService(store.Notifications, store.Accounts, NewLocalBus(), &fakePusher{err: errors.New("gateway down")}, "topic")
	ctx, cancel := context.WithCancel(context.Background())

	svc.Notify(ctx, "bob", "alice", models.NotifyCall, "Incoming audio call")
	cancel()
	svc.Close()

	items, err := svc.List(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestNotifyAfterCloseIsDropped(t *testing.T) {
	store := memstore.New()
	bus := NewLocalBus()
	store.Accounts.Put(&models.Account{ID: "bob"})

	svc := NewNotificationService(store.Notifications, store.Accounts, bus, nil, "topic")
	ctx := context.Background()

	svc.Notify(ctx, "bob", "alice", models.NotifySystem, "before")
	svc.Close()

	// a late session may still notify while the server drains
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				svc.Notify(ctx, "bob", "alice", models.NotifySystem, "after")
			}()
		}
		wg.Wait()
		svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on notifications sent after shutdown")
	}

	items, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "before", items[0].Content)
	assert.Len(t, bus.Sent("bob", EventNotification), 1)
}
