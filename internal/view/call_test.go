package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"lovechat-backend/internal/memstore"
	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	started []models.CallKind
	stopped int
	err     error
}

func (c *fakeCapture) Start(kind models.CallKind) error {
	if c.err != nil {
		return c.err
	}
	c.started = append(c.started, kind)
	return nil
}

func (c *fakeCapture) Stop() {
	c.stopped++
}

func TestCallViewsFollowSignaling(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	bus := services.NewLocalBus()
	notifier := &memstore.Notifier{}
	store.Accounts.Put(&models.Account{ID: "alice"})
	store.Accounts.Put(&models.Account{ID: "bob"})

	pairs := services.NewPairService(store.Accounts, store.Requests, bus, notifier, "end")
	req, err := pairs.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = pairs.AcceptRequest(ctx, req.ID, "bob")
	require.NoError(t, err)
	calls := services.NewCallService(store.Calls, pairs, bus, notifier, time.Minute)

	aliceCam, bobCam := &fakeCapture{}, &fakeCapture{}
	aliceView, bobView := NewCallView("alice", aliceCam), NewCallView("bob", bobCam)

	unsubscribe := bus.Subscribe(func(accountID string, msg services.WSMessage) {
		switch accountID {
		case "alice":
			aliceView.Apply(msg)
		case "bob":
			bobView.Apply(msg)
		}
	})
	defer unsubscribe()

	signal, err := calls.StartCall(ctx, "alice", "bob", models.CallVideo)
	require.NoError(t, err)
	require.NoError(t, aliceView.Outgoing(signal))

	assert.Equal(t, CallOutgoing, aliceView.Snapshot().State)
	assert.Equal(t, []models.CallKind{models.CallVideo}, aliceCam.started)
	assert.Equal(t, CallIncoming, bobView.Snapshot().State)
	assert.Empty(t, bobCam.started)

	_, err = calls.Answer(ctx, "bob", signal.ID)
	require.NoError(t, err)
	require.NoError(t, bobView.Answer())
	assert.Equal(t, CallActive, aliceView.Snapshot().State)
	assert.Equal(t, []models.CallKind{models.CallVideo}, bobCam.started)

	require.NoError(t, calls.End(ctx, "alice", "bob"))
	assert.Equal(t, CallIdle, aliceView.Snapshot().State)
	assert.Equal(t, CallIdle, bobView.Snapshot().State)

	assert.Equal(t, 1, aliceCam.stopped)
	assert.Equal(t, 1, bobCam.stopped)
	assert.False(t, bobView.Snapshot().Capturing)
}

func TestCallViewGuards(t *testing.T) {
	capture := &fakeCapture{}
	v := NewCallView("alice", capture)

	assert.ErrorIs(t, v.Answer(), services.ErrInvalidState)

	signal := &models.CallSignal{ID: "c1", FromID: "alice", ToID: "bob", Kind: models.CallAudio}
	require.NoError(t, v.Outgoing(signal))
	assert.ErrorIs(t, v.Outgoing(signal), services.ErrInvalidState)

	v.Apply(services.WSMessage{Type: services.EventCallEnded, CallID: "other"})
	assert.Equal(t, CallOutgoing, v.Snapshot().State)

	v.End()
	assert.Equal(t, CallIdle, v.Snapshot().State)
	assert.Equal(t, 1, capture.stopped)

	v.End()
	assert.Equal(t, 1, capture.stopped)
}

func TestCallViewCaptureFailure(t *testing.T) {
	v := NewCallView("alice", &fakeCapture{err: errors.New("camera busy")})

	err := v.Outgoing(&models.CallSignal{ID: "c1", ToID: "bob", Kind: models.CallVideo})
	assert.Error(t, err)
	assert.Equal(t, CallIdle, v.Snapshot().State)
}
