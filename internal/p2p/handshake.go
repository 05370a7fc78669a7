package p2p

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Handshake states.
const (
	hsStart       = "start"
	hsVersionSent = "version_sent"
	hsVersionBoth = "version_both"
	hsComplete    = "complete"
)

// Handshake events.
const (
	evSendVersion = "send_version"
	evRecvVersion = "recv_version"
	evRecvVerAck  = "recv_verack"
)

// Handshake tracks the version/verack exchange with one peer:
// start -> version sent -> both versions seen -> complete.
type Handshake struct {
	m *fsm.FSM
}

// NewHandshake creates a handshake in the start state.
func NewHandshake() *Handshake {
	return &Handshake{
		m: fsm.NewFSM(
			hsStart,
			fsm.Events{
				{Name: evSendVersion, Src: []string{hsStart}, Dst: hsVersionSent},
				{Name: evRecvVersion, Src: []string{hsVersionSent}, Dst: hsVersionBoth},
				{Name: evRecvVerAck, Src: []string{hsVersionBoth}, Dst: hsComplete},
			},
			fsm.Callbacks{},
		),
	}
}

// SendVersion records that our version message went out.
func (h *Handshake) SendVersion() error {
	return h.event(evSendVersion)
}

// RecvVersion records the peer's version message.
func (h *Handshake) RecvVersion() error {
	return h.event(evRecvVersion)
}

// RecvVerAck records the peer's verack; the handshake completes.
func (h *Handshake) RecvVerAck() error {
	return h.event(evRecvVerAck)
}

func (h *Handshake) event(name string) error {
	if err := h.m.Event(context.Background(), name); err != nil {
		return fmt.Errorf("handshake %s in state %s: %w", name, h.m.Current(), err)
	}
	return nil
}

// IsComplete reports whether both sides exchanged version and verack.
func (h *Handshake) IsComplete() bool {
	return h.m.Current() == hsComplete
}

// State returns the current state name, for logging.
func (h *Handshake) State() string {
	return h.m.Current()
}
