package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceStartAndEnd(t *testing.T) {
	f := newFixture(t)
	f.paired(t, "alice", "bob")
	ctx := context.Background()

	f.presence.Start(ctx, "alice")

	p, err := f.presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.Online)
	require.NotNil(t, p.LastSeen)

	events := f.bus.Sent("bob", EventPresence)
	require.Len(t, events, 1)
	assert.True(t, *events[0].Online)
	assert.Equal(t, "alice", events[0].AccountID)

	f.presence.End(ctx, "alice")

	p, err = f.presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, p.Online)

	events = f.bus.Sent("bob", EventPresence)
	require.Len(t, events, 2)
	assert.False(t, *events[1].Online)
}

func TestPresenceForSingleDoesNotPublish(t *testing.T) {
	f := newFixture(t)
	f.single("carol")

	f.presence.Start(context.Background(), "carol")

	assert.True(t, f.account(t, "carol").IsOnline)
	assert.Empty(t, f.bus.Sent("carol", EventPresence))
}

func TestPresenceLeaseExpiryIsReaped(t *testing.T) {
	f := newFixture(t)
	f.paired(t, "alice", "bob")
	ctx := context.Background()

	clock := time.Now()
	f.store.Signals.Now = func() time.Time { return clock }

	f.presence.Start(ctx, "alice")
	f.presence.Start(ctx, "bob")

	clock = clock.Add(30 * time.Second)
	f.presence.Heartbeat(ctx, "bob")

	// alice stopped heartbeating; her lease ran out while the flag still says online
	clock = clock.Add(20 * time.Second)
	assert.True(t, f.account(t, "alice").IsOnline)
	p, err := f.presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, p.Online)

	assert.Equal(t, 1, f.presence.Reap(ctx))
	assert.False(t, f.account(t, "alice").IsOnline)
	assert.True(t, f.account(t, "bob").IsOnline)

	offline := f.bus.Sent("bob", EventPresence)
	require.NotEmpty(t, offline)
	assert.False(t, *offline[len(offline)-1].Online)

	assert.Equal(t, 0, f.presence.Reap(ctx))
}

func TestHeartbeatRevivesReapedAccount(t *testing.T) {
	f := newFixture(t)
	f.paired(t, "alice", "bob")
	ctx := context.Background()

	clock := time.Now()
	f.store.Signals.Now = func() time.Time { return clock }

	f.presence.Start(ctx, "alice")
	clock = clock.Add(time.Minute)
	f.presence.Reap(ctx)
	require.False(t, f.account(t, "alice").IsOnline)

	f.presence.Heartbeat(ctx, "alice")

	p, err := f.presence.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, p.Online)
}
