// Package canlink tunnels the byte-link protocol over a SocketCAN
// interface using github.com/brutella/can: each CAN frame carries a
// one-byte length prefix followed by up to 7 payload bytes, since a
// classic CAN data frame's DLC tops out at 8.
package canlink

import (
	"errors"
	"fmt"

	"github.com/brutella/can"
	"github.com/fieldcore/linkcore/link"
	"github.com/sirupsen/logrus"
)

const maxChunkPayload = 7

// ErrBusDisconnected is wrapped into the error returned by StartTx when
// publishing a frame fails, which on SocketCAN means the interface went
// down or the bus is off. Callers can errors.Is against it to decide
// whether a link needs to be re-opened rather than just retried.
var ErrBusDisconnected = errors.New("canlink: bus disconnected")

// Tunnel is a link.Starter backed by a SocketCAN bus. It implements
// can.Handler to receive frames and forwards decoded payload bytes to
// the bound Driver.
type Tunnel struct {
	bus    *can.Bus
	txID   uint32
	driver *link.Driver
	log    *logrus.Entry
}

// Open binds to the named CAN interface (e.g. "can0") and transmits
// using txID as the arbitration ID for every frame it sends.
func Open(ifaceName string, txID uint32, log *logrus.Entry) (*Tunnel, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	bus, err := can.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("canlink: open %s: %w", ifaceName, err)
	}
	t := &Tunnel{bus: bus, txID: txID, log: log}
	bus.Subscribe(t)
	return t, nil
}

// Bind associates the Tunnel with the Driver it feeds.
func (t *Tunnel) Bind(d *link.Driver) {
	t.driver = d
}

// Run starts receiving and blocks until the bus connection ends. Call
// it from its own goroutine, mirroring brutella/can's ConnectAndPublish
// contract.
func (t *Tunnel) Run() error {
	return t.bus.ConnectAndPublish()
}

// Handle implements can.Handler: it is invoked by the bus for every
// received frame on any arbitration ID.
func (t *Tunnel) Handle(frame can.Frame) {
	n := int(frame.Data[0])
	if n == 0 || n > maxChunkPayload || n > int(frame.Length)-1 {
		t.log.WithFields(logrus.Fields{"id": frame.ID, "length": frame.Length, "declared": n}).Warn("canlink: malformed chunk length prefix, dropping frame")
		return
	}
	t.driver.HandleRxReady(frame.Data[1 : 1+n])
}

// StartTx splits data into <=7-byte chunks, each prefixed with its
// length, and publishes one CAN frame per chunk. Publication is
// synchronous, so completion is reported immediately.
func (t *Tunnel) StartTx(data []byte) error {
	total := len(data)
	for len(data) > 0 {
		n := len(data)
		if n > maxChunkPayload {
			n = maxChunkPayload
		}
		var f can.Frame
		f.ID = t.txID
		f.Length = uint8(n + 1)
		f.Data[0] = byte(n)
		copy(f.Data[1:], data[:n])
		if err := t.bus.Publish(f); err != nil {
			t.log.WithError(err).Error("canlink: publish failed, treating bus as disconnected")
			return fmt.Errorf("canlink: publish: %w: %v", ErrBusDisconnected, err)
		}
		data = data[n:]
	}
	t.driver.HandleTxDone(total)
	return nil
}

// StartRxChunk is a no-op: Handle delivers decoded payload directly.
func (t *Tunnel) StartRxChunk(chunk []byte) error {
	return nil
}
