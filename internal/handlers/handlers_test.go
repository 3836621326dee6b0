package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lovechat-backend/internal/config"
	"lovechat-backend/internal/memstore"
	"lovechat-backend/internal/middleware"
	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhrase = "end it"

type harness struct {
	store         *memstore.Store
	bus           *services.LocalBus
	hub           *services.WSHub
	users         *services.UserService
	pairs         *services.PairService
	presence      *services.PresenceService
	typing        *services.TypingSignaler
	notifications *services.NotificationService
	router        chi.Router
}

type timings struct {
	presenceTTL time.Duration
	heartbeat   time.Duration
	typingQuiet time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, timings{
		presenceTTL: time.Minute,
		heartbeat:   time.Second,
		typingQuiet: 50 * time.Millisecond,
	})
}

func newHarnessWith(t *testing.T, tm timings) *harness {
	t.Helper()

	store := memstore.New()
	bus := services.NewLocalBus()
	hub := services.NewWSHub()
	t.Cleanup(bus.Subscribe(func(accountID string, msg services.WSMessage) {
		hub.Deliver(accountID, msg)
	}))

	notifications := services.NewNotificationService(store.Notifications, store.Accounts, bus, nil, "")
	users := services.NewUserService(store.Accounts, "test-secret")
	pairs := services.NewPairService(store.Accounts, store.Requests, bus, notifications, testPhrase)
	typing := services.NewTypingSignaler(store.Signals, bus, tm.typingQuiet)
	channels := services.NewChannelService(store.Channels, store.Signals, bus)
	messages := services.NewMessageService(store.Messages, bus, typing, 200)
	presence := services.NewPresenceService(store.Accounts, store.Signals, pairs, bus, tm.presenceTTL)
	calls := services.NewCallService(store.Calls, pairs, bus, notifications, time.Minute)
	moments := services.NewMomentService(store.Moments, bus)
	media := services.NewMediaServiceWithPresigner(&stubPresigner{}, config.AWSConfig{
		Region:   "eu-west-1",
		S3Bucket: "lovechat-test",
	})
	t.Cleanup(func() {
		typing.Close(context.Background())
		notifications.Close()
	})

	api := &API{
		Users:         NewUserHandler(users),
		Pairs:         NewPairHandler(pairs),
		Channel:       NewChannelHandler(pairs, channels, messages, presence),
		Calls:         NewCallHandler(pairs, calls),
		Moments:       NewMomentHandler(pairs, moments),
		Media:         NewMediaHandler(pairs, media),
		Notifications: NewNotificationHandler(notifications),
	}
	ws := NewWebSocketHandler(hub, users, pairs, presence, typing, messages, channels, calls, tm.heartbeat)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		api.Mount(r, middleware.AuthMiddleware(users))
	})
	r.Get("/ws", ws.HandleWebSocket)

	return &harness{
		store:         store,
		bus:           bus,
		hub:           hub,
		users:         users,
		pairs:         pairs,
		presence:      presence,
		typing:        typing,
		notifications: notifications,
		router:        r,
	}
}

// do runs one request; token may be empty
func (h *harness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) register(t *testing.T, name string) *models.Account {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/users", "", services.CreateUserRequest{FirstName: name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var account models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.NotEmpty(t, account.Token)
	return &account
}

// pair registers two accounts and links them over the API
func (h *harness) pair(t *testing.T) (*models.Account, *models.Account) {
	t.Helper()
	alice := h.register(t, "Alice")
	bob := h.register(t, "Bob")

	rec := h.do(t, http.MethodPost, "/pair/requests", alice.Token, services.CreatePairRequest{Target: bob.Code})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var req models.PairingRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &req))

	rec = h.do(t, http.MethodPost, "/pair/requests/"+req.ID+"/accept", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return alice, bob
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

type stubPresigner struct{}

func (stubPresigner) PresignPutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://upload.test/" + aws.ToString(params.Key), Method: http.MethodPut}, nil
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndGetMe(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/users", "", services.CreateUserRequest{FirstName: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	alice := h.register(t, "Alice")
	assert.Len(t, alice.Code, 6)
	assert.Equal(t, models.StatusSingle, alice.Status)

	rec = h.do(t, http.MethodGet, "/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.Account
	decode(t, rec, &me)
	assert.Equal(t, alice.ID, me.ID)
	assert.Empty(t, me.Token)
}

func TestPairingFlow(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice")
	bob := h.register(t, "Bob")

	rec := h.do(t, http.MethodPost, "/pair/requests", alice.Token, services.CreatePairRequest{Target: alice.Code})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/pair/requests", alice.Token, services.CreatePairRequest{Target: "NOPE00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/pair/requests", alice.Token, services.CreatePairRequest{Target: bob.Code})
	require.Equal(t, http.StatusCreated, rec.Code)
	var req models.PairingRequest
	decode(t, rec, &req)

	rec = h.do(t, http.MethodGet, "/pair", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status services.PairStatus
	decode(t, rec, &status)
	require.Len(t, status.Inbound, 1)
	assert.Equal(t, alice.ID, status.Inbound[0].FromID)

	rec = h.do(t, http.MethodPost, "/pair/requests/"+req.ID+"/accept", alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the recipient may accept")

	rec = h.do(t, http.MethodPost, "/pair/requests/"+req.ID+"/accept", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accepted map[string]string
	decode(t, rec, &accepted)
	assert.Equal(t, alice.ID, accepted["partner_id"])
	assert.Equal(t, services.ResolveChannel(alice.ID, bob.ID), accepted["channel_id"])

	rec = h.do(t, http.MethodGet, "/pair", alice.Token, nil)
	decode(t, rec, &status)
	assert.Equal(t, models.StatusTaken, status.Status)
	assert.Equal(t, bob.ID, status.PartnerID)

	h.notifications.Wait()
	rec = h.do(t, http.MethodGet, "/notifications", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decode(t, rec, &inbox)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, models.NotifyRequest, inbox.Notifications[0].Kind)

	rec = h.do(t, http.MethodPost, "/notifications/read", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]int64
	decode(t, rec, &updated)
	assert.Equal(t, int64(1), updated["updated"])
}

func TestDisconnectNeedsPhrase(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPost, "/pair/disconnect", alice.Token, services.DisconnectRequest{Phrase: "bye"})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = h.do(t, http.MethodPost, "/pair/disconnect", alice.Token, services.DisconnectRequest{Phrase: testPhrase})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/channel", bob.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChannelRequiresPairing(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice")

	for _, path := range []string{"/channel", "/channel/messages", "/calls", "/memories", "/events"} {
		rec := h.do(t, http.MethodGet, path, alice.Token, nil)
		assert.Equal(t, http.StatusConflict, rec.Code, path)
	}
}

func TestMessaging(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPost, "/channel/messages", bob.Token, services.SendMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/channel/messages", alice.Token, services.SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent models.Message
	decode(t, rec, &sent)
	assert.Equal(t, models.MessageSent, sent.Status)

	rec = h.do(t, http.MethodGet, "/channel/messages", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "hi", list.Messages[0].Text)

	rec = h.do(t, http.MethodPost, "/channel/messages/"+sent.ID+"/reactions", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reacted struct {
		Reactions map[string]string `json:"reactions"`
	}
	decode(t, rec, &reacted)
	assert.Equal(t, services.DefaultReaction, reacted.Reactions[bob.ID])

	rec = h.do(t, http.MethodPost, "/channel/read", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var read struct {
		Read []string `json:"read"`
	}
	decode(t, rec, &read)
	assert.Equal(t, []string{sent.ID}, read.Read)

	rec = h.do(t, http.MethodGet, "/channel/messages?tz=Europe/Paris", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timeline"`)

	rec = h.do(t, http.MethodGet, "/channel/messages?tz=Not/AZone", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodDelete, "/channel/messages/"+sent.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the sender may delete")

	rec = h.do(t, http.MethodDelete, "/channel/messages/"+sent.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWallpaperAndPresence(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPut, "/channel/wallpaper", alice.Token, WallpaperRequest{URL: "https://cdn/w.jpg"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/channel", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap services.ChannelSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, "https://cdn/w.jpg", snap.Wallpaper)

	rec = h.do(t, http.MethodGet, "/channel/presence", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var presence services.Presence
	decode(t, rec, &presence)
	assert.False(t, presence.Online)
}

func TestCallsOverHTTP(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPost, "/calls", alice.Token, services.StartCallRequest{Kind: "hologram"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/calls", alice.Token, services.StartCallRequest{Kind: models.CallVideo})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var offer models.CallSignal
	decode(t, rec, &offer)
	assert.Equal(t, bob.ID, offer.ToID)

	rec = h.do(t, http.MethodPost, "/calls/"+offer.ID+"/answer", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/calls", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active struct {
		Calls []models.CallSignal `json:"calls"`
	}
	decode(t, rec, &active)
	assert.NotEmpty(t, active.Calls)

	rec = h.do(t, http.MethodPost, "/calls/end", alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, h.store.Calls.Len())
}

func TestMomentsOverHTTP(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPost, "/memories", alice.Token, services.AddMemoryRequest{ImageURL: "https://cdn/m.jpg"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var memory models.Memory
	decode(t, rec, &memory)

	rec = h.do(t, http.MethodDelete, "/memories/"+memory.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// outsiders cannot reach the pair's gallery
	carol := h.register(t, "Carol")
	rec = h.do(t, http.MethodPost, "/memories", alice.Token, services.AddMemoryRequest{ImageURL: "https://cdn/n.jpg"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &memory)
	rec = h.do(t, http.MethodDelete, "/memories/"+memory.ID, carol.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/events", bob.Token, services.AddEventRequest{
		Title: "First date",
		Date:  time.Date(2025, 2, 14, 19, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var event models.Event
	decode(t, rec, &event)
	assert.Equal(t, models.EventOther, event.Type)

	rec = h.do(t, http.MethodGet, "/events", alice.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Events []models.Event `json:"events"`
	}
	decode(t, rec, &events)
	require.Len(t, events.Events, 1)
	assert.Equal(t, "First date", events.Events[0].Title)
}

func TestUploadPresign(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)

	rec := h.do(t, http.MethodPost, "/uploads", alice.Token, services.UploadRequest{Purpose: "image", ContentType: "image/jpeg"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res services.UploadResponse
	decode(t, rec, &res)
	assert.Contains(t, res.Key, services.ResolveChannel(alice.ID, bob.ID)+"/image/")
	assert.Contains(t, res.MediaURL, "lovechat-test")

	rec = h.do(t, http.MethodPost, "/uploads", alice.Token, services.UploadRequest{Purpose: "image", ContentType: "application/pdf"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlockNeedsConfirm(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice")
	bob := h.register(t, "Bob")

	rec := h.do(t, http.MethodPost, "/users/"+bob.ID+"/block", alice.Token, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = h.do(t, http.MethodPost, "/users/"+bob.ID+"/block", alice.Token, services.BlockRequest{Confirm: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/users/singles", bob.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), alice.ID)

	rec = h.do(t, http.MethodPost, "/pair/requests", bob.Token, services.CreatePairRequest{Target: alice.Code})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
