package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips frames until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) services.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", eventType)

		var msg services.WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == eventType {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg services.WSMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketRequiresToken(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketSendsPairStatusOnConnect(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	conn := dial(t, srv, alice.Token)
	msg := readUntil(t, conn, services.EventPairStatus)
	assert.Equal(t, services.ResolveChannel(alice.ID, bob.ID), msg.ChannelID)
}

func TestWebSocketDeliveryThenRead(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	conn := dial(t, srv, alice.Token)
	readUntil(t, conn, services.EventPairStatus)

	rec := h.do(t, http.MethodPost, "/channel/messages", bob.Token, services.SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent models.Message
	decode(t, rec, &sent)

	// off screen: delivered, not read
	msg := readUntil(t, conn, services.EventMessageNew)
	assert.Equal(t, sent.ID, msg.MessageID)
	stored, err := h.store.Messages.GetByID(context.Background(), sent.ChannelID, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageDelivered, stored.Status)

	send(t, conn, services.WSMessage{Type: services.EventViewChannel})
	snap := readUntil(t, conn, services.EventChannelSnapshot)
	assert.Equal(t, sent.ChannelID, snap.ChannelID)
	stored, err = h.store.Messages.GetByID(context.Background(), sent.ChannelID, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageRead, stored.Status)

	// on screen: read as it arrives
	rec = h.do(t, http.MethodPost, "/channel/messages", bob.Token, services.SendMessageRequest{Text: "again"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &sent)
	readUntil(t, conn, services.EventMessageNew)
	stored, err = h.store.Messages.GetByID(context.Background(), sent.ChannelID, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageRead, stored.Status)
}

func TestWebSocketTypingReachesPartner(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	aliceConn := dial(t, srv, alice.Token)
	readUntil(t, aliceConn, services.EventPairStatus)
	bobConn := dial(t, srv, bob.Token)
	readUntil(t, bobConn, services.EventPairStatus)

	send(t, aliceConn, services.WSMessage{Type: services.EventTyping})
	msg := readUntil(t, bobConn, services.EventTyping)
	require.NotNil(t, msg.Typing)
	assert.True(t, *msg.Typing)
	assert.Equal(t, alice.ID, msg.AccountID)

	// the quiet period clears it
	msg = readUntil(t, bobConn, services.EventTyping)
	require.NotNil(t, msg.Typing)
	assert.False(t, *msg.Typing)
}

func TestWebSocketCallSignaling(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	aliceConn := dial(t, srv, alice.Token)
	readUntil(t, aliceConn, services.EventPairStatus)
	bobConn := dial(t, srv, bob.Token)
	readUntil(t, bobConn, services.EventPairStatus)

	send(t, aliceConn, services.WSMessage{Type: services.EventCallStart, Kind: string(models.CallAudio)})
	incoming := readUntil(t, bobConn, services.EventCallIncoming)
	require.NotEmpty(t, incoming.CallID)

	send(t, bobConn, services.WSMessage{Type: services.EventCallReject, CallID: incoming.CallID})
	ended := readUntil(t, aliceConn, services.EventCallEnded)
	assert.Equal(t, services.CallEndRejected, ended.Message)
}

func TestWebSocketUnknownType(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice")
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	conn := dial(t, srv, alice.Token)
	send(t, conn, services.WSMessage{Type: "bogus"})
	msg := readUntil(t, conn, services.EventError)
	assert.Contains(t, msg.Message, "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = readUntil(t, conn, services.EventError)
	assert.Equal(t, "Invalid message format", msg.Message)
}

func TestWebSocketPresenceFollowsConnection(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	online := func() bool {
		rec := h.do(t, http.MethodGet, "/channel/presence", bob.Token, nil)
		var p services.Presence
		if json.Unmarshal(rec.Body.Bytes(), &p) != nil {
			return false
		}
		return p.Online
	}

	conn := dial(t, srv, alice.Token)
	readUntil(t, conn, services.EventPairStatus)
	assert.True(t, online())
	assert.True(t, h.hub.IsOnline(alice.ID))

	conn.Close()
	assert.Eventually(t, func() bool { return !online() }, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return !h.hub.IsOnline(alice.ID) }, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketNewSessionReplacesOld(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	first := dial(t, srv, alice.Token)
	readUntil(t, first, services.EventPairStatus)
	second := dial(t, srv, alice.Token)
	readUntil(t, second, services.EventPairStatus)

	// the first socket is closed by the server
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	rec := h.do(t, http.MethodPost, "/channel/messages", bob.Token, services.SendMessageRequest{Text: "still here?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	readUntil(t, second, services.EventMessageNew)
	assert.True(t, h.hub.IsOnline(alice.ID))
}

func TestWebSocketPongsKeepPresence(t *testing.T) {
	h := newHarnessWith(t, timings{
		presenceTTL: 150 * time.Millisecond,
		heartbeat:   40 * time.Millisecond,
		typingQuiet: 50 * time.Millisecond,
	})
	alice, _ := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	conn := dial(t, srv, alice.Token)
	readUntil(t, conn, services.EventPairStatus)

	// pings are answered only while a read is pending; no heartbeat frames
	require.NoError(t, conn.SetReadDeadline(time.Time{}))
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(400 * time.Millisecond)

	ctx := context.Background()
	assert.Zero(t, h.presence.Reap(ctx))
	p, err := h.presence.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, p.Online)
}

func TestWebSocketReplacedSessionKeepsTyping(t *testing.T) {
	h := newHarnessWith(t, timings{
		presenceTTL: time.Minute,
		heartbeat:   time.Second,
		typingQuiet: time.Minute,
	})
	alice, bob := h.pair(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	first := dial(t, srv, alice.Token)
	readUntil(t, first, services.EventPairStatus)
	send(t, first, services.WSMessage{Type: services.EventTyping})
	require.Eventually(t, func() bool {
		return len(h.bus.Sent(bob.ID, services.EventTyping)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	second := dial(t, srv, alice.Token)
	readUntil(t, second, services.EventPairStatus)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// the old socket's teardown leaves the account's burst alone
	assert.Never(t, func() bool {
		return len(h.bus.Sent(bob.ID, services.EventTyping)) > 1
	}, 300*time.Millisecond, 10*time.Millisecond)
	flags, err := h.store.Signals.TypingFlags(context.Background(), services.ResolveChannel(alice.ID, bob.ID))
	require.NoError(t, err)
	assert.True(t, flags[alice.ID])
	assert.True(t, h.hub.IsOnline(alice.ID))
}
