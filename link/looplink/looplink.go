// Package looplink provides an in-process Starter for tests and
// demos: bytes submitted via StartTx are delivered back to the
// driver's RX side on the next Pump call, with no real I/O involved.
package looplink

import "github.com/fieldcore/linkcore/link"

// Loop is a link.Starter that loops transmitted bytes back to the
// same driver's receive path.
type Loop struct {
	driver  *link.Driver
	pending [][]byte
}

// New constructs a Loop. Bind must be called with the owning Driver
// before use (the Driver itself needs the Starter to exist first).
func New() *Loop {
	return &Loop{}
}

// Bind associates the Loop with the Driver it feeds.
func (l *Loop) Bind(d *link.Driver) {
	l.driver = d
}

// StartTx "transmits" by queuing the bytes for delivery on the next
// Pump call, and reports completion immediately.
func (l *Loop) StartTx(data []byte) error {
	cp := append([]byte(nil), data...)
	l.pending = append(l.pending, cp)
	l.driver.HandleTxDone(len(data))
	return nil
}

// StartRxChunk is a no-op: looplink delivers each transmitted chunk
// directly into the RX ring in Pump, bypassing the chunk double-buffer.
func (l *Loop) StartRxChunk(chunk []byte) error {
	return nil
}

// Pump delivers any bytes queued by StartTx into the driver's RX
// ring, simulating the other end of the wire looping data back.
func (l *Loop) Pump() {
	for _, data := range l.pending {
		l.driver.HandleRxReady(data)
	}
	l.pending = nil
}
