// Package memstore provides in-memory implementations of the service stores
// and a recording notifier. It backs unit tests and local runs that have no
// PostgreSQL available.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/repository"
)

// Store groups every in-memory collection
type Store struct {
	Accounts      *Accounts
	Requests      *Requests
	Channels      *Channels
	Messages      *Messages
	Calls         *Calls
	Moments       *Moments
	Notifications *Notifications
	Signals       *Signals
}

// New creates an empty store
func New() *Store {
	requests := &Requests{items: map[string]*models.PairingRequest{}}
	return &Store{
		Accounts:      &Accounts{items: map[string]*models.Account{}, requests: requests},
		Requests:      requests,
		Channels:      &Channels{items: map[string]*models.Channel{}},
		Messages:      &Messages{items: map[string]*models.Message{}, Now: time.Now},
		Calls:         &Calls{items: map[string]*models.CallSignal{}},
		Moments:       &Moments{memories: map[string]*models.Memory{}, events: map[string]*models.Event{}},
		Notifications: &Notifications{},
		Signals:       &Signals{presence: map[string]time.Time{}, typing: map[string]map[string]bool{}, Now: time.Now},
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.Blocked = append([]string(nil), a.Blocked...)
	return &c
}

// Accounts is an in-memory AccountStore
type Accounts struct {
	mu       sync.Mutex
	items    map[string]*models.Account
	requests *Requests

	// FailPair, when set, makes Pair fail without mutating anything
	FailPair error
}

// Put inserts or replaces an account
func (s *Accounts) Put(a *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Status == "" {
		a.Status = models.StatusSingle
	}
	s.items[a.ID] = cloneAccount(a)
}

func (s *Accounts) Create(_ context.Context, a *models.Account) error {
	s.Put(a)
	return nil
}

func (s *Accounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, notFound("account", id)
	}
	return cloneAccount(a), nil
}

func (s *Accounts) GetByCode(_ context.Context, code string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.items {
		if a.Code == code {
			return cloneAccount(a), nil
		}
	}
	return nil, notFound("account code", code)
}

func (s *Accounts) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := s.GetByCode(ctx, code)
	return err == nil, nil
}

func (s *Accounts) UpdatePushToken(_ context.Context, id string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return notFound("account", id)
	}
	a.PushToken = token
	return nil
}

func (s *Accounts) ListSingles(_ context.Context, excludeID string, limit int) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Account
	for _, a := range s.items {
		if a.Status == models.StatusSingle && a.ID != excludeID {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Accounts) AddBlocked(_ context.Context, id, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return notFound("account", id)
	}
	if !a.HasBlocked(target) {
		a.Blocked = append(a.Blocked, target)
	}
	return nil
}

func (s *Accounts) Pair(_ context.Context, requestID, fromID, toID string, start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPair != nil {
		return s.FailPair
	}
	from, ok1 := s.items[fromID]
	to, ok2 := s.items[toID]
	if !ok1 || !ok2 {
		return notFound("accounts", fromID+","+toID)
	}
	if from.Status == models.StatusTaken || to.Status == models.StatusTaken {
		return fmt.Errorf("account taken: %w", repository.ErrConflict)
	}
	if err := s.requests.remove(requestID); err != nil {
		return err
	}
	from.Status, to.Status = models.StatusTaken, models.StatusTaken
	f, t := fromID, toID
	from.PartnerID, to.PartnerID = &t, &f
	from.RelationshipStart, to.RelationshipStart = &start, &start
	return nil
}

func (s *Accounts) Unpair(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return "", notFound("account", id)
	}
	if a.Status != models.StatusTaken || a.PartnerID == nil {
		return "", fmt.Errorf("account not taken: %w", repository.ErrConflict)
	}
	partner, ok := s.items[*a.PartnerID]
	if !ok || partner.Partner() != id {
		return "", fmt.Errorf("link not mutual: %w", repository.ErrConflict)
	}
	for _, x := range []*models.Account{a, partner} {
		x.Status = models.StatusSingle
		x.PartnerID = nil
		x.RelationshipStart = nil
	}
	return partner.ID, nil
}

func (s *Accounts) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return notFound("account", id)
	}
	a.IsOnline = online
	a.LastSeen = &at
	return nil
}

func (s *Accounts) ListOnline(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, a := range s.items {
		if a.IsOnline {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Requests is an in-memory RequestStore
type Requests struct {
	mu    sync.Mutex
	items map[string]*models.PairingRequest
}

func (s *Requests) Create(_ context.Context, r *models.PairingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.items[r.ID] = &c
	return nil
}

func (s *Requests) GetByID(_ context.Context, id string) (*models.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, notFound("pairing request", id)
	}
	c := *r
	return &c, nil
}

func (s *Requests) ListInbound(_ context.Context, toID string) ([]*models.PairingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PairingRequest
	for _, r := range s.items {
		if r.ToID == toID && r.Status == models.RequestPending {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Requests) HasOutbound(_ context.Context, fromID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if r.FromID == fromID && r.Status == models.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Requests) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

// Len returns the number of stored requests
func (s *Requests) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// remove expects the caller to hold whatever lock guards the transaction
func (s *Requests) remove(id string) error {
	if _, ok := s.items[id]; !ok {
		return notFound("pairing request", id)
	}
	delete(s.items, id)
	return nil
}

// Channels is an in-memory ChannelStore
type Channels struct {
	mu    sync.Mutex
	items map[string]*models.Channel
}

func (s *Channels) Get(_ context.Context, id string) (*models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return &models.Channel{ID: id}, nil
}

func (s *Channels) SetWallpaper(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		c = &models.Channel{ID: id}
		s.items[id] = c
	}
	c.Wallpaper = url
	c.UpdatedAt = time.Now()
	return nil
}

// Messages is an in-memory MessageStore
type Messages struct {
	mu    sync.Mutex
	items map[string]*models.Message
	seq   int64

	// Now stamps created_at; tests replace it to control ordering
	Now func() time.Time
	// Fail, when set, is returned by Create
	Fail error
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	if m.Reactions != nil {
		c.Reactions = make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			c.Reactions[k] = v
		}
	}
	return &c
}

func (s *Messages) Create(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.seq++
	m.Seq = s.seq
	m.CreatedAt = s.Now()
	s.items[m.ID] = cloneMessage(m)
	return nil
}

func (s *Messages) GetByID(_ context.Context, channelID, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.ChannelID != channelID {
		return nil, notFound("message", id)
	}
	return cloneMessage(m), nil
}

func (s *Messages) ListByChannel(_ context.Context, channelID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.items {
		if m.ChannelID == channelID {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Messages) Delete(_ context.Context, channelID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.ChannelID != channelID {
		return notFound("message", id)
	}
	delete(s.items, id)
	return nil
}

func (s *Messages) MarkRead(_ context.Context, channelID, viewerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.items {
		if m.ChannelID == channelID && m.SenderID != viewerID && m.Status != models.MessageRead {
			m.Status = models.MessageRead
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Messages) MarkDelivered(_ context.Context, channelID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.ChannelID != channelID || m.Status != models.MessageSent {
		return false, nil
	}
	m.Status = models.MessageDelivered
	return true, nil
}

func (s *Messages) ToggleReaction(_ context.Context, channelID, id, accountID, emoji string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok || m.ChannelID != channelID {
		return nil, notFound("message", id)
	}
	if m.Reactions == nil {
		m.Reactions = map[string]string{}
	}
	if _, has := m.Reactions[accountID]; has {
		delete(m.Reactions, accountID)
	} else {
		m.Reactions[accountID] = emoji
	}
	return cloneMessage(m).Reactions, nil
}

// Calls is an in-memory CallStore
type Calls struct {
	mu    sync.Mutex
	items map[string]*models.CallSignal
}

func between(s *models.CallSignal, a, b string) bool {
	return (s.FromID == a && s.ToID == b) || (s.FromID == b && s.ToID == a)
}

func (s *Calls) Create(_ context.Context, c *models.CallSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.items[c.ID] = &cp
	return nil
}

func (s *Calls) GetByID(_ context.Context, id string) (*models.CallSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, notFound("call signal", id)
	}
	cp := *c
	return &cp, nil
}

func (s *Calls) Transition(_ context.Context, id string, from, to models.CallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok || c.Status != from {
		return fmt.Errorf("call signal %s: %w", id, repository.ErrConflict)
	}
	c.Status = to
	return nil
}

func (s *Calls) ListBetween(_ context.Context, a, b string) ([]*models.CallSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CallSignal
	for _, c := range s.items {
		if between(c, a, b) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Calls) DeleteBetween(ctx context.Context, a, b string) ([]*models.CallSignal, error) {
	out, _ := s.ListBetween(ctx, a, b)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range out {
		delete(s.items, c.ID)
	}
	return out, nil
}

func (s *Calls) DeleteStale(_ context.Context, before time.Time) ([]*models.CallSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CallSignal
	for id, c := range s.items {
		if c.Status == models.CallCalling && c.CreatedAt.Before(before) {
			out = append(out, c)
			delete(s.items, id)
		}
	}
	return out, nil
}

// Len returns the number of live signals
func (s *Calls) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Moments is an in-memory MomentStore
type Moments struct {
	mu       sync.Mutex
	memories map[string]*models.Memory
	events   map[string]*models.Event
}

func (s *Moments) CreateMemory(_ context.Context, m *models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.memories[m.ID] = &cp
	return nil
}

func (s *Moments) ListMemories(_ context.Context, channelID string) ([]*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Memory
	for _, m := range s.memories {
		if m.ChannelID == channelID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Moments) DeleteMemory(_ context.Context, channelID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok || m.ChannelID != channelID {
		return notFound("memory", id)
	}
	delete(s.memories, id)
	return nil
}

func (s *Moments) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *Moments) ListEvents(_ context.Context, channelID string) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.events {
		if e.ChannelID == channelID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Moments) DeleteEvent(_ context.Context, channelID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.ChannelID != channelID {
		return notFound("event", id)
	}
	delete(s.events, id)
	return nil
}

// Notifications is an in-memory NotificationStore
type Notifications struct {
	mu    sync.Mutex
	items []*models.Notification
}

func (s *Notifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.items = append(s.items, &cp)
	return nil
}

func (s *Notifications) ListByRecipient(_ context.Context, toID string, limit int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		if s.items[i].ToID == toID {
			cp := *s.items[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Notifications) MarkAllRead(_ context.Context, toID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, item := range s.items {
		if item.ToID == toID && !item.Read {
			item.Read = true
			n++
		}
	}
	return n, nil
}

// Signals is an in-memory SignalStore with lease expiry driven by Now
type Signals struct {
	mu       sync.Mutex
	presence map[string]time.Time
	typing   map[string]map[string]bool

	Now func() time.Time
}

func (s *Signals) TouchPresence(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[id] = s.Now().Add(ttl)
	return nil
}

func (s *Signals) ClearPresence(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence, id)
	return nil
}

func (s *Signals) HasPresence(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.presence[id]
	return ok && s.Now().Before(exp), nil
}

func (s *Signals) SetTyping(_ context.Context, channelID, accountID string, typing bool, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing[channelID] == nil {
		s.typing[channelID] = map[string]bool{}
	}
	s.typing[channelID][accountID] = typing
	return nil
}

func (s *Signals) TypingFlags(_ context.Context, channelID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for k, v := range s.typing[channelID] {
		out[k] = v
	}
	return out, nil
}

// Sent is one captured notification
type Sent struct {
	ToID    string
	FromID  string
	Kind    models.NotificationKind
	Content string
}

// Notifier records notifications synchronously
type Notifier struct {
	mu   sync.Mutex
	sent []Sent
}

func (n *Notifier) Notify(_ context.Context, toID, fromID string, kind models.NotificationKind, content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{ToID: toID, FromID: fromID, Kind: kind, Content: content})
}

// Sent returns captured notifications
func (n *Notifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}
