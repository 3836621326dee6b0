package view

import (
	"fmt"
	"sync"

	"lovechat-backend/internal/models"
	"lovechat-backend/internal/services"
)

// Capture starts and stops local camera/microphone capture
type Capture interface {
	Start(kind models.CallKind) error
	Stop()
}

// CallState is the local phase of a call
type CallState string

const (
	CallIdle     CallState = "idle"
	CallOutgoing CallState = "outgoing"
	CallIncoming CallState = "incoming"
	CallActive   CallState = "active"
)

// CallSnapshot is what the UI renders
type CallSnapshot struct {
	State     CallState
	CallID    string
	PeerID    string
	Kind      models.CallKind
	Capturing bool
}

// CallView tracks one account's call. Capture runs from the outgoing offer or
// the local answer until the call ends on either side.
type CallView struct {
	mu        sync.Mutex
	accountID string
	capture   Capture

	state     CallState
	callID    string
	peerID    string
	kind      models.CallKind
	capturing bool
}

// NewCallView creates an idle call view
func NewCallView(accountID string, capture Capture) *CallView {
	return &CallView{
		accountID: accountID,
		capture:   capture,
		state:     CallIdle,
	}
}

// Outgoing records our own offer and starts capture
func (v *CallView) Outgoing(signal *models.CallSignal) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != CallIdle {
		return fmt.Errorf("call already %s: %w", v.state, services.ErrInvalidState)
	}
	if err := v.capture.Start(signal.Kind); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	v.set(CallOutgoing, signal.ID, signal.ToID, signal.Kind)
	v.capturing = true
	return nil
}

// Answer starts capture for a ringing incoming call
func (v *CallView) Answer() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != CallIncoming {
		return fmt.Errorf("no incoming call: %w", services.ErrInvalidState)
	}
	if err := v.capture.Start(v.kind); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	v.state = CallActive
	v.capturing = true
	return nil
}

// End stops capture and returns to idle; used for local hangup and reject
func (v *CallView) End() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reset()
}

// Apply folds call events from the bus into the view
func (v *CallView) Apply(msg services.WSMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch msg.Type {
	case services.EventCallIncoming:
		if msg.AccountID == v.accountID || v.state != CallIdle {
			return
		}
		v.set(CallIncoming, msg.CallID, msg.AccountID, models.CallKind(msg.Kind))
	case services.EventCallAccepted:
		if msg.CallID == v.callID && v.state == CallOutgoing {
			v.state = CallActive
		}
	case services.EventCallEnded:
		if msg.CallID == v.callID {
			v.reset()
		}
	}
}

// Snapshot returns the current call state
func (v *CallView) Snapshot() CallSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return CallSnapshot{
		State:     v.state,
		CallID:    v.callID,
		PeerID:    v.peerID,
		Kind:      v.kind,
		Capturing: v.capturing,
	}
}

func (v *CallView) set(state CallState, callID, peerID string, kind models.CallKind) {
	v.state = state
	v.callID = callID
	v.peerID = peerID
	v.kind = kind
}

func (v *CallView) reset() {
	if v.capturing {
		v.capture.Stop()
		v.capturing = false
	}
	v.set(CallIdle, "", "", "")
}
