package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBusRoutesByAccount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	bus := NewRedisBus(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[string][]WSMessage{}
	done := make(chan error, 1)
	go func() {
		done <- bus.Listen(ctx, func(accountID string, msg WSMessage) {
			mu.Lock()
			defer mu.Unlock()
			got[accountID] = append(got[accountID], msg)
		})
	}()

	// the subscription is asynchronous; keep publishing until it is observed
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, "warmup", WSMessage{Type: EventHeartbeat})
		mu.Lock()
		defer mu.Unlock()
		return len(got["warmup"]) > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "bob", WSMessage{Type: EventMessageNew, MessageID: "m1", ChannelID: "alice_bob"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		msgs := got["bob"]
		return len(msgs) == 1 && msgs[0].MessageID == "m1" && msgs[0].ChannelID == "alice_bob"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
