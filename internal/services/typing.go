package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const signalWriteTimeout = 3 * time.Second

// TypingSignaler debounces composition events per (channel, account). The
// first keystroke of a burst writes typing=true; every keystroke pushes the
// reset back by the quiet period; the reset writes typing=false once.
type TypingSignaler struct {
	signals SignalStore
	bus     Publisher
	quiet   time.Duration

	mu      sync.Mutex
	pending map[string]*typingBurst
	flags   map[string]*typingFlag
}

type typingBurst struct {
	pc    PairContext
	gen   uint64
	timer *time.Timer
}

// typingFlag orders the writes of one key. seq is assigned under
// TypingSignaler.mu; written is guarded by mu.
type typingFlag struct {
	seq uint64

	mu      sync.Mutex
	written uint64
}

// typingChange is a flag write staged under TypingSignaler.mu and flushed
// after it is released.
type typingChange struct {
	pc     PairContext
	typing bool
	flag   *typingFlag
	seq    uint64
}

// NewTypingSignaler creates a new typing signaler
func NewTypingSignaler(signals SignalStore, bus Publisher, quiet time.Duration) *TypingSignaler {
	return &TypingSignaler{
		signals: signals,
		bus:     bus,
		quiet:   quiet,
		pending: make(map[string]*typingBurst),
		flags:   make(map[string]*typingFlag),
	}
}

func typingKeyOf(pc PairContext) string {
	return pc.ChannelID + "|" + pc.AccountID
}

// Keystroke records one composition change
func (t *TypingSignaler) Keystroke(ctx context.Context, pc PairContext) {
	t.mu.Lock()
	key := typingKeyOf(pc)
	burst, ok := t.pending[key]
	var changes []typingChange
	if !ok {
		burst = &typingBurst{pc: pc}
		t.pending[key] = burst
		changes = append(changes, t.stage(key, pc, true))
	}

	burst.gen++
	gen := burst.gen
	if burst.timer != nil {
		burst.timer.Stop()
	}
	burst.timer = time.AfterFunc(t.quiet, func() {
		t.expire(key, gen)
	})
	t.mu.Unlock()

	t.flush(ctx, changes)
}

// Stop ends the burst immediately, e.g. when the message is sent
func (t *TypingSignaler) Stop(ctx context.Context, pc PairContext) {
	t.mu.Lock()
	key := typingKeyOf(pc)
	var changes []typingChange
	if burst, ok := t.pending[key]; ok {
		burst.timer.Stop()
		delete(t.pending, key)
		changes = append(changes, t.stage(key, pc, false))
	}
	t.mu.Unlock()

	t.flush(ctx, changes)
}

// StopAccount ends every burst of an account; used when its session closes
func (t *TypingSignaler) StopAccount(ctx context.Context, accountID string) {
	t.mu.Lock()
	var changes []typingChange
	for key, burst := range t.pending {
		if burst.pc.AccountID != accountID {
			continue
		}
		burst.timer.Stop()
		delete(t.pending, key)
		changes = append(changes, t.stage(key, burst.pc, false))
	}
	t.mu.Unlock()

	t.flush(ctx, changes)
}

// Close cancels every pending reset and clears the flags
func (t *TypingSignaler) Close(ctx context.Context) {
	t.mu.Lock()
	var changes []typingChange
	for key, burst := range t.pending {
		burst.timer.Stop()
		delete(t.pending, key)
		changes = append(changes, t.stage(key, burst.pc, false))
	}
	t.mu.Unlock()

	t.flush(ctx, changes)
}

// expire runs on the timer goroutine; a stale generation means a later
// keystroke rescheduled the reset.
func (t *TypingSignaler) expire(key string, gen uint64) {
	t.mu.Lock()
	burst, ok := t.pending[key]
	if !ok || burst.gen != gen {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	change := t.stage(key, burst.pc, false)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), signalWriteTimeout)
	defer cancel()
	t.flush(ctx, []typingChange{change})
}

// stage numbers a change for its key. The caller holds t.mu.
func (t *TypingSignaler) stage(key string, pc PairContext, typing bool) typingChange {
	flag, ok := t.flags[key]
	if !ok {
		flag = &typingFlag{}
		t.flags[key] = flag
	}
	flag.seq++
	return typingChange{pc: pc, typing: typing, flag: flag, seq: flag.seq}
}

// flush writes staged changes without holding t.mu. A change overtaken by a
// later one of the same key is dropped, so the last staged state wins.
func (t *TypingSignaler) flush(ctx context.Context, changes []typingChange) {
	for _, c := range changes {
		c.flag.mu.Lock()
		if c.seq > c.flag.written {
			c.flag.written = c.seq
			t.emit(ctx, c.pc, c.typing)
		}
		c.flag.mu.Unlock()
	}
}

// emit is best-effort
func (t *TypingSignaler) emit(ctx context.Context, pc PairContext, typing bool) {
	if err := t.signals.SetTyping(ctx, pc.ChannelID, pc.AccountID, typing, t.quiet*5); err != nil {
		log.Warn().
			Err(err).
			Str("channel_id", pc.ChannelID).
			Str("user_id", pc.AccountID).
			Msg("Failed to write typing flag")
	}

	publish(ctx, t.bus, WSMessage{
		Type:      EventTyping,
		ChannelID: pc.ChannelID,
		AccountID: pc.AccountID,
		Typing:    &typing,
	}, pc.PartnerID)
}
