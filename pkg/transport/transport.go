// Package transport implements the framed message layer: a receive
// parser and reassembly engine over an arbitrary byte source, and a
// cooperative, non-blocking fragmented sender driven by repeated pump
// calls. One Transport exists per link.
package transport

import (
	"sync"

	"github.com/fieldcore/linkcore/internal/crc"
	"github.com/fieldcore/linkcore/pkg/frame"
	"github.com/sirupsen/logrus"
)

// Config bounds the sizes the transport will accept. Zero fields fall
// back to the package defaults.
type Config struct {
	MaxFramePayload int
	MaxFragments    int
	ReassemblyMax   int
}

const (
	DefaultMaxFramePayload = 128
	DefaultMaxFragments    = 64
	DefaultReassemblyMax   = 2048
)

func (c Config) withDefaults() Config {
	if c.MaxFramePayload <= 0 {
		c.MaxFramePayload = DefaultMaxFramePayload
	}
	if c.MaxFragments <= 0 {
		c.MaxFragments = DefaultMaxFragments
	}
	if c.ReassemblyMax <= 0 {
		c.ReassemblyMax = DefaultReassemblyMax
	}
	return c
}

// Stats are free-running counters on a Transport.
type Stats struct {
	FramesOK        uint64
	FramesCRCErr    uint64
	FramesSyncDrop  uint64
	MessagesOK      uint64
	MessagesDropped uint64
}

// LowerWriter is the non-blocking byte sink a Transport drains
// assembled frame bytes into. It must never block; a short return
// means the caller should retry later via TxPump.
type LowerWriter interface {
	Write(p []byte) (n int)
}

// MessageHandler is invoked once per fully reassembled message. The
// payload slice is only valid for the duration of the call.
type MessageHandler func(session uint16, payload []byte, isResponse bool)

type parserState int

const (
	stateSync0 parserState = iota
	stateSync1
	stateHeader
	statePayload
	stateCRC
)

// reassembly holds the in-progress inbound message, if any.
type reassembly struct {
	inProgress bool
	session    uint16
	nextIndex  uint16
	fragCount  uint16
	isResponse bool
	buf        []byte
}

// txState holds the in-progress outbound send, if any.
type txState struct {
	inProgress bool
	session    uint16
	isResponse bool
	msg        []byte
	fragCount  uint16
	fragIndex  uint16

	msgLen     int
	frameBuf   []byte
	frameLen   int
	frameWrite int
	assembled  bool
}

// Transport is a per-link framing state machine: byte-wise receive
// parsing plus reassembly on one side, a fragmenting, pump-driven
// sender on the other.
type Transport struct {
	cfg Config
	log *logrus.Entry

	lower LowerWriter
	onMsg MessageHandler

	mu sync.Mutex

	state   parserState
	hdrBuf  [frame.HeaderLen]byte
	hdrHave int

	payloadBuf  []byte
	payloadHave int
	payloadWant int

	crcBuf  [frame.CRCLen]byte
	crcHave int

	reasm reassembly
	tx    txState

	stats Stats
}

// New constructs a Transport bound to a lower-layer sink and an
// upper-layer message callback.
func New(cfg Config, lower LowerWriter, onMsg MessageHandler, log *logrus.Entry) *Transport {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &Transport{
		cfg:   cfg,
		log:   log,
		lower: lower,
		onMsg: onMsg,
	}
	t.reasm.buf = make([]byte, cfg.ReassemblyMax)
	t.tx.msg = make([]byte, cfg.ReassemblyMax)
	t.tx.frameBuf = make([]byte, frame.HeaderLen+cfg.MaxFramePayload+frame.CRCLen)
	t.Reset()
	return t
}

// Reset discards any in-progress receive or send state. Statistics are
// left untouched.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetParser()
	t.resetReassembly()
	t.tx.inProgress = false
	t.tx.assembled = false
	t.tx.frameLen = 0
	t.tx.frameWrite = 0
}

func (t *Transport) resetParser() {
	t.state = stateSync0
	t.hdrHave = 0
	t.payloadHave = 0
	t.crcHave = 0
}

func (t *Transport) resetReassembly() {
	t.reasm.inProgress = false
	t.reasm.nextIndex = 0
	t.reasm.fragCount = 0
}

// Stats returns a snapshot of the running counters.
func (t *Transport) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// delivery is a message handed off from the parser to the caller of
// RxBytes, to be delivered to onMsg once the parser's lock is released.
type delivery struct {
	session    uint16
	payload    []byte
	isResponse bool
}

// RxBytes feeds received bytes through the parser, one at a time. It
// may be called with arbitrary chunking: a single byte, a whole frame,
// or several frames concatenated. onMsg, if a message completes, is
// invoked synchronously but outside the parser's internal lock, so
// that a handler reacting to the message may freely call SendMessage
// or TxPump on this same transport without deadlocking.
func (t *Transport) RxBytes(data []byte) {
	for _, b := range data {
		t.mu.Lock()
		d, ok := t.rxByte(b)
		t.mu.Unlock()
		if ok && t.onMsg != nil {
			t.onMsg(d.session, d.payload, d.isResponse)
		}
	}
}

func (t *Transport) rxByte(b byte) (delivery, bool) {
	switch t.state {
	case stateSync0:
		if b == frame.Sync0 {
			t.state = stateSync1
		}
	case stateSync1:
		if b == frame.Sync1 {
			t.state = stateHeader
			t.hdrHave = 0
		} else {
			t.state = stateSync0
		}
	case stateHeader:
		t.hdrBuf[t.hdrHave] = b
		t.hdrHave++
		if t.hdrHave == frame.HeaderLen {
			hdr := frame.DecodeHeader(t.hdrBuf[:])
			if int(hdr.PayloadLen) > t.cfg.MaxFramePayload {
				t.stats.FramesSyncDrop++
				t.log.WithField("payload_len", hdr.PayloadLen).Warn("transport: oversized payload_len in header, dropping sync")
				t.state = stateSync0
				return delivery{}, false
			}
			t.payloadWant = int(hdr.PayloadLen)
			t.payloadHave = 0
			if t.payloadBuf == nil || cap(t.payloadBuf) < t.cfg.MaxFramePayload {
				t.payloadBuf = make([]byte, t.cfg.MaxFramePayload)
			}
			if t.payloadWant == 0 {
				t.state = stateCRC
				t.crcHave = 0
			} else {
				t.state = statePayload
			}
		}
	case statePayload:
		t.payloadBuf[t.payloadHave] = b
		t.payloadHave++
		if t.payloadHave == t.payloadWant {
			t.state = stateCRC
			t.crcHave = 0
		}
	case stateCRC:
		t.crcBuf[t.crcHave] = b
		t.crcHave++
		if t.crcHave == frame.CRCLen {
			d, ok := t.completeFrame()
			t.state = stateSync0
			return d, ok
		}
	}
	return delivery{}, false
}

func (t *Transport) completeFrame() (delivery, bool) {
	hdr := frame.DecodeHeader(t.hdrBuf[:])
	sum := crc.New()
	sum.Write(t.hdrBuf[:])
	sum.Write(t.payloadBuf[:t.payloadHave])
	got := sum.Sum()
	want := uint32(t.crcBuf[0]) | uint32(t.crcBuf[1])<<8 | uint32(t.crcBuf[2])<<16 | uint32(t.crcBuf[3])<<24
	if got != want {
		t.stats.FramesCRCErr++
		t.log.WithFields(logrus.Fields{"session": hdr.Session, "frag_index": hdr.FragIndex}).Warn("transport: CRC mismatch, discarding frame")
		t.resetReassembly()
		return delivery{}, false
	}
	t.stats.FramesOK++
	t.log.WithFields(logrus.Fields{"session": hdr.Session, "frag_index": hdr.FragIndex, "flags": hdr.Flags}).Debug("transport: frame ok")
	return t.handleFrame(hdr, t.payloadBuf[:t.payloadHave])
}

func (t *Transport) handleFrame(hdr frame.Header, payload []byte) (delivery, bool) {
	if hdr.Ver != frame.Version {
		t.stats.FramesSyncDrop++
		t.log.WithField("ver", hdr.Ver).Warn("transport: unexpected frame version, resyncing")
		t.resetReassembly()
		return delivery{}, false
	}
	if int(hdr.PayloadLen) > t.cfg.MaxFramePayload {
		t.stats.FramesSyncDrop++
		t.log.WithField("payload_len", hdr.PayloadLen).Warn("transport: oversized payload_len in frame, resyncing")
		t.resetReassembly()
		return delivery{}, false
	}
	if hdr.FragCount == 0 || int(hdr.FragCount) > t.cfg.MaxFragments {
		t.stats.FramesSyncDrop++
		t.log.WithField("frag_count", hdr.FragCount).Warn("transport: invalid frag_count, resyncing")
		t.resetReassembly()
		return delivery{}, false
	}

	isStart := hdr.Flags&frame.FlagStart != 0
	if isStart {
		t.reasm.inProgress = true
		t.reasm.session = hdr.Session
		t.reasm.nextIndex = 0
		t.reasm.fragCount = hdr.FragCount
		t.reasm.isResponse = hdr.Flags&frame.FlagResp != 0
	} else {
		if !t.reasm.inProgress || hdr.Session != t.reasm.session || hdr.FragIndex != t.reasm.nextIndex {
			t.stats.MessagesDropped++
			t.log.WithFields(logrus.Fields{"session": hdr.Session, "frag_index": hdr.FragIndex}).Warn("transport: fragment out of order or unexpected, dropping message")
			t.resetReassembly()
			return delivery{}, false
		}
	}

	used := int(t.reasm.nextIndex) * t.cfg.MaxFramePayload
	if used+len(payload) > t.cfg.ReassemblyMax {
		t.stats.FramesSyncDrop++
		t.log.WithField("session", hdr.Session).Warn("transport: reassembly would overflow, resyncing")
		t.resetReassembly()
		return delivery{}, false
	}
	copy(t.reasm.buf[used:], payload)
	msgLen := used + len(payload)
	t.reasm.nextIndex++

	if hdr.Flags&frame.FlagEnd != 0 {
		t.stats.MessagesOK++
		d := delivery{session: t.reasm.session, isResponse: t.reasm.isResponse}
		d.payload = append([]byte(nil), t.reasm.buf[:msgLen]...)
		t.resetReassembly()
		return d, true
	}
	return delivery{}, false
}

// SendMessage copies payload into the transport's send buffer and
// begins a new outbound message. It refuses if a send is already in
// progress or payload exceeds ReassemblyMax.
func (t *Transport) SendMessage(session uint16, payload []byte, isResponse bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx.inProgress {
		return false
	}
	if len(payload) > t.cfg.ReassemblyMax {
		return false
	}
	n := copy(t.tx.msg, payload)
	t.tx.session = session
	t.tx.isResponse = isResponse
	t.tx.fragIndex = 0
	t.tx.fragCount = fragCountFor(n, t.cfg.MaxFramePayload)
	t.tx.assembled = false
	t.tx.frameLen = 0
	t.tx.frameWrite = 0
	t.tx.inProgress = true
	t.tx.msgLen = n
	return true
}

func fragCountFor(msgLen, maxPayload int) uint16 {
	if msgLen == 0 {
		return 1
	}
	n := (msgLen + maxPayload - 1) / maxPayload
	return uint16(n)
}

// TxPump advances the sender by at most one lower.Write call: it
// assembles the next frame if none is staged, then writes as much of
// the staged frame as the lower layer accepts. It returns immediately
// if the lower layer accepts zero bytes; the caller retries on the
// next tick.
func (t *Transport) TxPump() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tx.inProgress {
		return
	}
	if !t.tx.assembled {
		t.assembleFrame()
	}
	if t.tx.frameWrite >= t.tx.frameLen {
		return
	}
	n := t.lower.Write(t.tx.frameBuf[t.tx.frameWrite:t.tx.frameLen])
	if n <= 0 {
		return
	}
	t.tx.frameWrite += n
	if t.tx.frameWrite < t.tx.frameLen {
		return
	}
	t.tx.fragIndex++
	t.tx.assembled = false
	if t.tx.fragIndex >= t.tx.fragCount {
		t.tx.inProgress = false
	}
}

func (t *Transport) assembleFrame() {
	maxPayload := t.cfg.MaxFramePayload
	start := int(t.tx.fragIndex) * maxPayload
	end := start + maxPayload
	if end > t.tx.msgLen {
		end = t.tx.msgLen
	}
	payload := t.tx.msg[start:end]

	var flags frame.Flags
	if t.tx.fragIndex == 0 {
		flags |= frame.FlagStart
	}
	if t.tx.fragIndex == t.tx.fragCount-1 {
		flags |= frame.FlagEnd
	} else {
		flags |= frame.FlagMiddle
	}
	if t.tx.isResponse {
		flags |= frame.FlagResp
	}

	hdr := frame.Header{
		Ver:        frame.Version,
		Flags:      flags,
		Session:    t.tx.session,
		FragIndex:  t.tx.fragIndex,
		FragCount:  t.tx.fragCount,
		PayloadLen: uint16(len(payload)),
	}

	buf := t.tx.frameBuf
	buf[0] = frame.Sync0
	buf[1] = frame.Sync1
	hdr.Encode(buf[2 : 2+frame.HeaderLen])
	n := copy(buf[2+frame.HeaderLen:], payload)

	sum := crc.New()
	sum.Write(buf[2 : 2+frame.HeaderLen])
	sum.Write(payload)
	c := sum.Sum()
	crcOff := 2 + frame.HeaderLen + n
	buf[crcOff+0] = byte(c)
	buf[crcOff+1] = byte(c >> 8)
	buf[crcOff+2] = byte(c >> 16)
	buf[crcOff+3] = byte(c >> 24)

	t.tx.frameLen = crcOff + frame.CRCLen
	t.tx.frameWrite = 0
	t.tx.assembled = true
}

// Idle reports whether the sender has no in-progress message.
func (t *Transport) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.tx.inProgress
}
