// Package binding couples one transport to the command registry: it
// implements the transport's message callback, dispatches requests,
// packs responses, and retries send on back-pressure via a
// pending-response slot.
package binding

import (
	"sync"

	"github.com/fieldcore/linkcore/pkg/command"
	"github.com/sirupsen/logrus"
)

// Sender is the subset of *transport.Transport a Binding drives.
type Sender interface {
	SendMessage(session uint16, payload []byte, isResponse bool) bool
	Idle() bool
}

// Stats counts upper-layer discards not already tracked by the
// transport (malformed request envelopes that parsed frames but not
// commands).
type Stats struct {
	RequestDiscards uint64
}

// Binding is the per-link glue between a Sender and a command
// Registry. One Binding exists per link; two bindings never share a
// mutex or response buffer.
type Binding struct {
	registry *command.Registry
	sender   Sender
	log      *logrus.Entry

	mu       sync.Mutex
	respBuf  []byte
	pending  bool
	pendBuf  []byte
	pendLen  int
	pendSess uint16

	stats Stats
}

// New constructs a Binding over registry and sender, with a response
// buffer sized to respBufCap (at least REASSEMBLY_MAX in production).
func New(registry *command.Registry, sender Sender, respBufCap int, log *logrus.Entry) *Binding {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Binding{
		registry: registry,
		sender:   sender,
		log:      log,
		respBuf:  make([]byte, respBufCap),
		pendBuf:  make([]byte, respBufCap),
	}
}

// Stats returns a snapshot of the binding's own counters.
func (b *Binding) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// OnMessage is the transport.MessageHandler this binding should be
// installed as. It ignores response messages (this node is a server,
// never a client of itself).
func (b *Binding) OnMessage(session uint16, payload []byte, isResponse bool) {
	if isResponse {
		return
	}

	id, reqPayload, ok := command.ParseRequest(payload)
	if !ok {
		b.mu.Lock()
		b.stats.RequestDiscards++
		b.mu.Unlock()
		b.log.WithField("session", session).Warn("binding: malformed request envelope, discarding")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	respPayload := make([]byte, len(b.respBuf))
	n, status, _ := b.registry.Dispatch(id, reqPayload, respPayload)
	if status != command.StatusOK {
		n = 0
	}

	respLen, ok := command.PackResponse(id, status, respPayload[:n], b.respBuf)
	if !ok {
		b.log.WithField("id", id).Error("binding: response envelope did not fit response buffer")
		return
	}

	if b.sender.SendMessage(session, b.respBuf[:respLen], true) {
		return
	}

	copy(b.pendBuf, b.respBuf[:respLen])
	b.pendLen = respLen
	b.pendSess = session
	b.pending = true
}

// Tick retries a pending response, if any, when the sender has become
// idle. Call it from the same cooperative loop that drives the
// transport's TxPump.
func (b *Binding) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending || !b.sender.Idle() {
		return
	}
	if b.sender.SendMessage(b.pendSess, b.pendBuf[:b.pendLen], true) {
		b.pending = false
	}
}

// Pending reports whether a response is currently waiting for retry.
func (b *Binding) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}
