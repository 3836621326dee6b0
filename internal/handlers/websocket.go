package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin is enforced by CORS on the REST surface
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub             *services.WSHub
	userService     *services.UserService
	pairService     *services.PairService
	presenceService *services.PresenceService
	typing          *services.TypingSignaler
	messageService  *services.MessageService
	channelService  *services.ChannelService
	callService     *services.CallService
	heartbeat       time.Duration
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	pairService *services.PairService,
	presenceService *services.PresenceService,
	typing *services.TypingSignaler,
	messageService *services.MessageService,
	channelService *services.ChannelService,
	callService *services.CallService,
	heartbeat time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		userService:     userService,
		pairService:     pairService,
		presenceService: presenceService,
		typing:          typing,
		messageService:  messageService,
		channelService:  channelService,
		callService:     callService,
		heartbeat:       heartbeat,
	}
}

// wsSession is one socket. Only the writer goroutine writes to conn.
type wsSession struct {
	h      *WebSocketHandler
	userID string
	conn   *websocket.Conn
	client *services.Client

	mu      sync.Mutex
	viewing string

	// read goroutine only
	leaseAt time.Time
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	s := &wsSession{
		h:      h,
		userID: userID,
		conn:   conn,
		client: services.NewClient(userID, sendBuffer),
	}

	h.hub.Register(s.client)
	h.presenceService.Start(ctx, userID)
	s.leaseAt = time.Now()
	defer func() {
		// a newer session of the same account keeps it online and typing
		if h.hub.Unregister(s.client) {
			cleanupCtx := context.WithoutCancel(ctx)
			h.typing.StopAccount(cleanupCtx, userID)
			h.presenceService.End(cleanupCtx, userID)
		}
	}()

	s.sendPairStatus(ctx)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	go s.writePump(ctx)
	s.readPump(ctx)
}

func (s *wsSession) sendPairStatus(ctx context.Context) {
	status, err := s.h.pairService.Status(ctx, s.userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", s.userID).Msg("Failed to load pair_status")
		return
	}
	s.client.Queue(services.WSMessage{
		Type:      services.EventPairStatus,
		Timestamp: time.Now().UnixMilli(),
		ChannelID: status.ChannelID,
		Data:      status,
	})
}

func (s *wsSession) readPump(ctx context.Context) {
	readWait := 2 * s.h.heartbeat
	s.conn.SetReadDeadline(time.Now().Add(readWait))
	s.conn.SetPongHandler(func(string) error {
		s.refreshLease(ctx)
		return s.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, messageBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", s.userID).Msg("WebSocket error")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readWait))

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", s.userID).Msg("Failed to parse WebSocket message")
			s.sendError("Invalid message format")
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			log.Warn().Err(err).Str("user_id", s.userID).Str("type", msg.Type).Msg("Failed to handle message")
			s.sendError(err.Error())
		}
	}
}

// refreshLease extends the presence lease from a pong, at most twice per
// ping interval.
func (s *wsSession) refreshLease(ctx context.Context) {
	now := time.Now()
	if now.Sub(s.leaseAt) < s.h.heartbeat/2 {
		return
	}
	s.leaseAt = now
	s.h.presenceService.Heartbeat(ctx, s.userID)
}

func (s *wsSession) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.h.heartbeat)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.client.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.client.Send():
			s.beforeDeliver(ctx, msg)
			data, err := json.Marshal(msg)
			if err != nil {
				log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal message")
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("user_id", s.userID).Msg("Failed to send message")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// beforeDeliver advances the status of an incoming partner message: read when
// the channel is on screen, delivered otherwise.
func (s *wsSession) beforeDeliver(ctx context.Context, msg services.WSMessage) {
	if msg.Type != services.EventMessageNew || msg.AccountID == s.userID {
		return
	}

	pc, err := s.h.pairService.Context(ctx, s.userID)
	if err != nil || pc.ChannelID != msg.ChannelID {
		return
	}

	if s.viewingChannel() == pc.ChannelID {
		if _, err := s.h.messageService.Observe(ctx, pc); err != nil {
			log.Warn().Err(err).Str("user_id", s.userID).Msg("Failed to mark messages read")
		}
		return
	}
	if err := s.h.messageService.MarkDelivered(ctx, pc, msg.MessageID); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("Failed to mark message delivered")
	}
}

// handleMessage processes incoming WebSocket messages
func (s *wsSession) handleMessage(ctx context.Context, msg services.WSMessage) error {
	switch msg.Type {
	case services.EventHeartbeat:
		s.leaseAt = time.Now()
		s.h.presenceService.Heartbeat(ctx, s.userID)
		return nil
	case services.EventTyping:
		return s.handleTyping(ctx, msg)
	case services.EventViewChannel:
		return s.handleViewChannel(ctx)
	case services.EventLeaveChannel:
		s.setViewing("")
		return nil
	case services.EventCallStart:
		_, err := s.h.callService.StartCall(ctx, s.userID, "", models.CallKind(msg.Kind))
		return err
	case services.EventCallAnswer:
		_, err := s.h.callService.Answer(ctx, s.userID, msg.CallID)
		return err
	case services.EventCallReject:
		return s.h.callService.Reject(ctx, s.userID, msg.CallID)
	case services.EventCallEnd:
		return s.h.callService.End(ctx, s.userID, "")
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (s *wsSession) handleTyping(ctx context.Context, msg services.WSMessage) error {
	pc, err := s.h.pairService.Context(ctx, s.userID)
	if err != nil {
		return err
	}
	if msg.Typing != nil && !*msg.Typing {
		s.h.typing.Stop(ctx, pc)
		return nil
	}
	s.h.typing.Keystroke(ctx, pc)
	return nil
}

func (s *wsSession) handleViewChannel(ctx context.Context) error {
	pc, err := s.h.pairService.Context(ctx, s.userID)
	if err != nil {
		return err
	}
	s.setViewing(pc.ChannelID)

	if _, err := s.h.messageService.Observe(ctx, pc); err != nil {
		return err
	}

	snap, err := s.h.channelService.Snapshot(ctx, pc)
	if err != nil {
		return err
	}
	s.client.Queue(services.WSMessage{
		Type:      services.EventChannelSnapshot,
		Timestamp: time.Now().UnixMilli(),
		ChannelID: pc.ChannelID,
		Data:      snap,
	})
	return nil
}

func (s *wsSession) setViewing(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = channelID
}

func (s *wsSession) viewingChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewing
}

// sendError queues an error frame for this socket
func (s *wsSession) sendError(message string) {
	s.client.Queue(services.WSMessage{
		Type:    services.EventError,
		Message: message,
	})
}
