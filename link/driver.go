// Package link implements the hardware-agnostic half of a byte link
// driver: double-buffered DMA chunk handoff into an RX ring, and a TX
// ring drained into a DMA staging buffer. Concrete backends (serial
// UART, SocketCAN tunnel, loopback) drive this state machine from
// their own interrupt or event sources.
package link

import (
	"sync"
	"time"

	"github.com/fieldcore/linkcore/internal/ring"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTXRing  = 2048
	DefaultRXRing  = 1024
	DefaultRXChunk = 64
	// DefaultTXChunk bounds how much process() drains into the DMA
	// staging buffer per call.
	DefaultTXChunk = 256
	// DefaultRXInactivityUs is how long a backend should wait with no
	// RX activity before flushing whatever it has buffered, so a
	// partial frame at the tail of a burst isn't held back waiting for
	// a DMA chunk that will never fill.
	DefaultRXInactivityUs = 20000
)

// RxState mirrors the driver's receive-side lifecycle.
type RxState int

const (
	RxNotInitialized RxState = iota
	RxEnabled
	RxDisabled
)

// Starter is the concrete transmit primitive a backend supplies: start
// a DMA (or equivalent) transfer of exactly len(data) bytes. It must
// not block; completion is reported later via HandleTxDone/Aborted.
type Starter interface {
	StartTx(data []byte) error
	// StartRxChunk arms the next RX DMA chunk buffer.
	StartRxChunk(chunk []byte) error
}

// Stats are the free-running counters a Driver maintains.
type Stats struct {
	TxBytes       uint64
	RxBytes       uint64
	TxOverruns    uint64
	RxOverruns    uint64
	FramingErrors uint64
	ParityErrors  uint64
}

// Config sizes a Driver's rings and chunks. Zero fields fall back to
// package defaults.
type Config struct {
	TXRing         int
	RXRing         int
	RXChunk        int
	TXChunk        int
	RXInactivityUs int
}

func (c Config) withDefaults() Config {
	if c.TXRing <= 0 {
		c.TXRing = DefaultTXRing
	}
	if c.RXRing <= 0 {
		c.RXRing = DefaultRXRing
	}
	if c.RXChunk <= 0 {
		c.RXChunk = DefaultRXChunk
	}
	if c.TXChunk <= 0 {
		c.TXChunk = DefaultTXChunk
	}
	if c.RXInactivityUs <= 0 {
		c.RXInactivityUs = DefaultRXInactivityUs
	}
	return c
}

// Driver owns a link's RX/TX rings and the DMA chunk bookkeeping. One
// side of the rings is driven from the backend's event callbacks
// (HandleRx*, HandleTx*), the other from the cooperative Send/Process/
// Read calls.
type Driver struct {
	cfg     Config
	starter Starter
	log     *logrus.Entry

	txMu sync.Mutex
	rxMu sync.Mutex

	tx *ring.Ring
	rx *ring.Ring

	rxChunks [2][]byte
	rxActive int

	rxState RxState
	txBusy  bool

	txStage []byte

	stats Stats
}

// New constructs a Driver over freshly allocated rings and RX chunk
// buffers, and arms the first RX chunk via starter.
func New(cfg Config, starter Starter, log *logrus.Entry) *Driver {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Driver{
		cfg:     cfg,
		starter: starter,
		log:     log,
		tx:      ring.New(cfg.TXRing),
		rx:      ring.New(cfg.RXRing),
		txStage: make([]byte, cfg.TXChunk),
	}
	d.rxChunks[0] = make([]byte, cfg.RXChunk)
	d.rxChunks[1] = make([]byte, cfg.RXChunk)
	d.rxState = RxEnabled
	if err := d.starter.StartRxChunk(d.rxChunks[0]); err != nil {
		d.log.WithError(err).Warn("link: initial rx chunk arm failed")
	}
	d.rxActive = 0
	return d
}

// Stats returns a snapshot of the running counters.
func (d *Driver) Stats() Stats {
	d.rxMu.Lock()
	d.txMu.Lock()
	s := d.stats
	d.txMu.Unlock()
	d.rxMu.Unlock()
	return s
}

// Send enqueues data onto the TX ring without blocking. It returns the
// BufferFull status if free_space < len(data); the caller retains the
// unsent bytes.
type SendStatus int

const (
	SendOK SendStatus = iota
	SendBufferFull
)

func (d *Driver) Send(data []byte) SendStatus {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.tx.FreeSpace() < len(data) {
		return SendBufferFull
	}
	d.tx.Write(data)
	return SendOK
}

// Write implements transport.LowerWriter: a non-blocking, possibly
// short, accept-what-fits sink backed by the TX ring.
func (d *Driver) Write(p []byte) int {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.tx.Write(p)
}

// FreeSpace reports the TX ring's remaining capacity.
func (d *Driver) FreeSpace() int {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	return d.tx.FreeSpace()
}

// Available reports the number of unread bytes in the RX ring.
func (d *Driver) Available() int {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	return d.rx.Available()
}

// Read drains up to len(dst) bytes from the RX ring.
func (d *Driver) Read(dst []byte) int {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	return d.rx.Read(dst)
}

// Process kicks an idle TX by draining up to TXChunk bytes from the
// ring into the staging buffer and starting a transfer. It is a no-op
// if a transfer is already in progress or the ring is empty.
func (d *Driver) Process() {
	d.txMu.Lock()
	if d.txBusy {
		d.txMu.Unlock()
		return
	}
	n := d.tx.Read(d.txStage)
	if n == 0 {
		d.txMu.Unlock()
		return
	}
	d.txBusy = true
	chunk := append([]byte(nil), d.txStage[:n]...)
	d.txMu.Unlock()

	if err := d.starter.StartTx(chunk); err != nil {
		d.txMu.Lock()
		d.txBusy = false
		d.stats.TxOverruns++
		// Submission failed before the transfer began: put the bytes
		// back so Process retries them on the next call.
		d.tx.Write(chunk)
		d.txMu.Unlock()
		d.log.WithError(err).Warn("link: tx submit failed")
	}
}

// HandleTxDone is the backend's completion callback for a successful
// transfer of n bytes.
func (d *Driver) HandleTxDone(n int) {
	d.txMu.Lock()
	d.txBusy = false
	d.stats.TxBytes += uint64(n)
	d.txMu.Unlock()
}

// HandleTxAborted is the backend's completion callback for a transfer
// that did not complete; bytes are not counted.
func (d *Driver) HandleTxAborted() {
	d.txMu.Lock()
	d.txBusy = false
	d.txMu.Unlock()
}

// HandleRxReady is invoked by the backend when chunk bytes have been
// written by DMA. A short ring write counts as an overrun.
func (d *Driver) HandleRxReady(chunk []byte) {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	n := d.rx.Write(chunk)
	d.stats.RxBytes += uint64(n)
	if n < len(chunk) {
		d.stats.RxOverruns++
	}
}

// HandleRxBufRequest hands back the alternate chunk buffer so the
// backend can arm the next DMA transfer while the first is drained.
func (d *Driver) HandleRxBufRequest() {
	d.rxMu.Lock()
	next := 1 - d.rxActive
	d.rxActive = next
	chunk := d.rxChunks[next]
	d.rxMu.Unlock()

	if err := d.starter.StartRxChunk(chunk); err != nil {
		d.log.WithError(err).Warn("link: rx chunk re-arm failed")
	}
}

// HandleRxStopped restarts RX from chunk 0 after a disable/stop event.
func (d *Driver) HandleRxStopped() {
	d.rxMu.Lock()
	d.rxState = RxDisabled
	d.rxActive = 0
	chunk := d.rxChunks[0]
	d.rxMu.Unlock()

	if err := d.starter.StartRxChunk(chunk); err != nil {
		d.log.WithError(err).Warn("link: rx restart failed")
		return
	}
	d.rxMu.Lock()
	d.rxState = RxEnabled
	d.rxMu.Unlock()
}

// HandleFramingError counts a framing error and restarts RX.
func (d *Driver) HandleFramingError() {
	d.rxMu.Lock()
	d.stats.FramingErrors++
	d.rxMu.Unlock()
	d.HandleRxStopped()
}

// HandleParityError counts a parity error and restarts RX.
func (d *Driver) HandleParityError() {
	d.rxMu.Lock()
	d.stats.ParityErrors++
	d.rxMu.Unlock()
	d.HandleRxStopped()
}

// RxState reports the current receive-side lifecycle state.
func (d *Driver) RxState() RxState {
	d.rxMu.Lock()
	defer d.rxMu.Unlock()
	return d.rxState
}

// RXInactivityTimeout reports how long a backend should let the RX
// side sit idle before flushing a partial DMA chunk, so a short burst
// that never fills a whole chunk still reaches the ring promptly.
func (d *Driver) RXInactivityTimeout() time.Duration {
	return time.Duration(d.cfg.RXInactivityUs) * time.Microsecond
}
