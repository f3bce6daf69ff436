package transport

import (
	"testing"

	"github.com/fieldcore/linkcore/internal/crc"
	"github.com/fieldcore/linkcore/pkg/frame"
	"github.com/stretchr/testify/assert"
)

// byteSink is a LowerWriter that accepts at most maxPerCall bytes per
// Write and appends everything it accepts to buf.
type byteSink struct {
	buf         []byte
	maxPerCall  int
	callsLogged int
}

func (s *byteSink) Write(p []byte) int {
	s.callsLogged++
	n := len(p)
	if s.maxPerCall > 0 && n > s.maxPerCall {
		n = s.maxPerCall
	}
	s.buf = append(s.buf, p[:n]...)
	return n
}

func pumpUntilIdle(t *testing.T, tr *Transport, maxPumps int) {
	t.Helper()
	for i := 0; i < maxPumps && !tr.Idle(); i++ {
		tr.TxPump()
	}
	assert.True(t, tr.Idle(), "sender did not finish within pump budget")
}

func TestSingleFrameRoundTrip(t *testing.T) {
	sink := &byteSink{}
	tr := New(Config{}, sink, nil, nil)

	payload := []byte("hello")
	assert.True(t, tr.SendMessage(0x1234, payload, false))
	pumpUntilIdle(t, tr, 10)

	var got []struct {
		session    uint16
		payload    []byte
		isResponse bool
	}
	rx := New(Config{}, nil, func(session uint16, p []byte, isResponse bool) {
		cp := append([]byte(nil), p...)
		got = append(got, struct {
			session    uint16
			payload    []byte
			isResponse bool
		}{session, cp, isResponse})
	}, nil)
	rx.RxBytes(sink.buf)

	if assert.Len(t, got, 1) {
		assert.Equal(t, uint16(0x1234), got[0].session)
		assert.Equal(t, payload, got[0].payload)
		assert.False(t, got[0].isResponse)
	}
	assert.EqualValues(t, 1, rx.Stats().FramesOK)
	assert.EqualValues(t, 1, rx.Stats().MessagesOK)
}

func TestFragmentedRoundTrip(t *testing.T) {
	sink := &byteSink{}
	tr := New(Config{}, sink, nil, nil)

	payload := make([]byte, 145)
	for i := range payload {
		payload[i] = byte(i)
	}
	assert.True(t, tr.SendMessage(0xCAFE, payload, true))
	pumpUntilIdle(t, tr, 10)

	var gotSession uint16
	var gotPayload []byte
	var gotResp bool
	rx := New(Config{}, nil, func(session uint16, p []byte, isResponse bool) {
		gotSession = session
		gotPayload = append([]byte(nil), p...)
		gotResp = isResponse
	}, nil)
	rx.RxBytes(sink.buf)

	assert.Equal(t, uint16(0xCAFE), gotSession)
	assert.Equal(t, payload, gotPayload)
	assert.True(t, gotResp)
	assert.EqualValues(t, 2, rx.Stats().FramesOK)
}

func TestFrameFlagsAndFragCount(t *testing.T) {
	sink := &byteSink{}
	tr := New(Config{}, sink, nil, nil)
	payload := make([]byte, 300)
	assert.True(t, tr.SendMessage(1, payload, false))
	pumpUntilIdle(t, tr, 20)

	offset := 0
	expectIdx := uint16(0)
	wantFragCount := uint16(3)
	for offset < len(sink.buf) {
		assert.Equal(t, frame.Sync0, sink.buf[offset])
		assert.Equal(t, frame.Sync1, sink.buf[offset+1])
		hdr := frame.DecodeHeader(sink.buf[offset+2 : offset+2+frame.HeaderLen])
		assert.Equal(t, expectIdx, hdr.FragIndex)
		assert.Equal(t, wantFragCount, hdr.FragCount)
		if expectIdx == 0 {
			assert.NotZero(t, hdr.Flags&frame.FlagStart)
		}
		if expectIdx == wantFragCount-1 {
			assert.NotZero(t, hdr.Flags&frame.FlagEnd)
		} else {
			assert.NotZero(t, hdr.Flags&frame.FlagMiddle)
		}
		offset += 2 + frame.HeaderLen + int(hdr.PayloadLen) + frame.CRCLen
		expectIdx++
	}
	assert.Equal(t, wantFragCount, expectIdx)
}

func TestCRCCorruptionThenRecovery(t *testing.T) {
	sink := &byteSink{}
	tr := New(Config{}, sink, nil, nil)
	assert.True(t, tr.SendMessage(7, []byte("abc"), false))
	pumpUntilIdle(t, tr, 5)

	corrupted := append([]byte(nil), sink.buf...)
	corrupted[len(corrupted)-1] ^= 1

	delivered := 0
	rx := New(Config{}, nil, func(uint16, []byte, bool) { delivered++ }, nil)
	rx.RxBytes(corrupted)
	assert.Equal(t, 0, delivered)
	assert.EqualValues(t, 1, rx.Stats().FramesCRCErr)
	assert.EqualValues(t, 0, rx.Stats().FramesOK)

	rx.RxBytes(sink.buf)
	assert.Equal(t, 1, delivered)
	assert.EqualValues(t, 1, rx.Stats().FramesOK)
}

func TestBackPressureEightBytesPerPump(t *testing.T) {
	sink := &byteSink{maxPerCall: 8}
	tr := New(Config{}, sink, nil, nil)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	assert.True(t, tr.SendMessage(42, payload, true))

	for !tr.Idle() {
		before := len(sink.buf)
		tr.TxPump()
		n := len(sink.buf) - before
		assert.True(t, n == 0 || n == 8)
	}

	var gotPayload []byte
	var gotResp bool
	rx := New(Config{}, nil, func(session uint16, p []byte, isResponse bool) {
		gotPayload = append([]byte(nil), p...)
		gotResp = isResponse
	}, nil)
	rx.RxBytes(sink.buf)

	assert.Equal(t, payload, gotPayload)
	assert.True(t, gotResp)
}

func TestOversizedPayloadLenCountsSyncDrop(t *testing.T) {
	rx := New(Config{MaxFramePayload: 16}, nil, nil, nil)
	hdr := frame.Header{Ver: frame.Version, Flags: frame.FlagStart | frame.FlagEnd, Session: 1, FragIndex: 0, FragCount: 1, PayloadLen: 9000}
	buf := make([]byte, 2+frame.HeaderLen)
	buf[0] = frame.Sync0
	buf[1] = frame.Sync1
	hdr.Encode(buf[2:])
	rx.RxBytes(buf)
	assert.EqualValues(t, 1, rx.Stats().FramesSyncDrop)
}

func buildRawFrame(hdr frame.Header, payload []byte) []byte {
	buf := make([]byte, 2+frame.HeaderLen+len(payload)+frame.CRCLen)
	buf[0] = frame.Sync0
	buf[1] = frame.Sync1
	hdr.Encode(buf[2 : 2+frame.HeaderLen])
	copy(buf[2+frame.HeaderLen:], payload)

	sum := crc.New()
	sum.Write(buf[2 : 2+frame.HeaderLen])
	sum.Write(payload)
	c := sum.Sum()
	off := 2 + frame.HeaderLen + len(payload)
	buf[off+0] = byte(c)
	buf[off+1] = byte(c >> 8)
	buf[off+2] = byte(c >> 16)
	buf[off+3] = byte(c >> 24)
	return buf
}

func TestOutOfOrderFragmentDropsAndResyncs(t *testing.T) {
	start := buildRawFrame(frame.Header{
		Ver: frame.Version, Flags: frame.FlagStart, Session: 9,
		FragIndex: 0, FragCount: 2, PayloadLen: 4,
	}, []byte{1, 2, 3, 4})
	// Out-of-order: frag_index 2 instead of the expected 1.
	badMiddle := buildRawFrame(frame.Header{
		Ver: frame.Version, Flags: frame.FlagEnd, Session: 9,
		FragIndex: 2, FragCount: 2, PayloadLen: 4,
	}, []byte{5, 6, 7, 8})

	delivered := 0
	rx := New(Config{}, nil, func(uint16, []byte, bool) { delivered++ }, nil)
	rx.RxBytes(start)
	rx.RxBytes(badMiddle)

	assert.Equal(t, 0, delivered)
	assert.EqualValues(t, 1, rx.Stats().MessagesDropped)
}

func TestDuplicateFragmentIndexDropsAndResyncs(t *testing.T) {
	start := buildRawFrame(frame.Header{
		Ver: frame.Version, Flags: frame.FlagStart, Session: 3,
		FragIndex: 0, FragCount: 2, PayloadLen: 2,
	}, []byte{1, 2})
	dup := buildRawFrame(frame.Header{
		Ver: frame.Version, Flags: frame.FlagMiddle, Session: 3,
		FragIndex: 0, FragCount: 2, PayloadLen: 2,
	}, []byte{3, 4})

	delivered := 0
	rx := New(Config{}, nil, func(uint16, []byte, bool) { delivered++ }, nil)
	rx.RxBytes(start)
	rx.RxBytes(dup)

	assert.Equal(t, 0, delivered)
	assert.EqualValues(t, 1, rx.Stats().MessagesDropped)
}
