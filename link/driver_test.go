package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeStarter is a Starter whose StartTx "completes" synchronously by
// handing bytes to a sink, and whose StartRxChunk is a no-op recorder.
type fakeStarter struct {
	sent        []byte
	failNextTx  bool
	rxArmedWith [][]byte
}

func (f *fakeStarter) StartTx(data []byte) error {
	if f.failNextTx {
		f.failNextTx = false
		return assertErr{}
	}
	f.sent = append(f.sent, data...)
	return nil
}

func (f *fakeStarter) StartRxChunk(chunk []byte) error {
	f.rxArmedWith = append(f.rxArmedWith, chunk)
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "injected failure" }

func TestSendThenProcessDeliversToStarter(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{}, fs, nil)

	assert.Equal(t, SendOK, d.Send([]byte("hello")))
	d.Process()
	d.HandleTxDone(5)

	assert.Equal(t, []byte("hello"), fs.sent)
	assert.EqualValues(t, 5, d.Stats().TxBytes)
}

func TestSendRejectsWhenRingFull(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{TXRing: 4}, fs, nil)
	assert.Equal(t, SendBufferFull, d.Send([]byte("abcdef")))
}

func TestTxSubmitFailurePutsBytesBack(t *testing.T) {
	fs := &fakeStarter{failNextTx: true}
	d := New(Config{}, fs, nil)
	assert.Equal(t, SendOK, d.Send([]byte("xyz")))
	d.Process()
	assert.EqualValues(t, 1, d.Stats().TxOverruns)

	// Bytes were restored; a retry should succeed.
	d.Process()
	assert.Equal(t, []byte("xyz"), fs.sent)
}

func TestRxReadyWritesToRingAndCountsOverrun(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{RXRing: 4}, fs, nil)

	// capacity 4 means usable space 3; offering 5 causes a short write.
	d.HandleRxReady([]byte{1, 2, 3, 4, 5})
	assert.EqualValues(t, 1, d.Stats().RxOverruns)

	out := make([]byte, 8)
	n := d.Read(out)
	assert.Equal(t, 3, n)
}

func TestRxBufRequestAlternatesChunks(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{}, fs, nil)
	// New() already armed chunk 0.
	d.HandleRxBufRequest()
	d.HandleRxBufRequest()
	if assert.Len(t, fs.rxArmedWith, 3) {
		assert.Same(t, &d.rxChunks[0][0], &fs.rxArmedWith[0][0])
		assert.Same(t, &d.rxChunks[1][0], &fs.rxArmedWith[1][0])
		assert.Same(t, &d.rxChunks[0][0], &fs.rxArmedWith[2][0])
	}
}

func TestRXInactivityTimeoutDefaultsAndOverrides(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{}, fs, nil)
	assert.Equal(t, 20*time.Millisecond, d.RXInactivityTimeout())

	d2 := New(Config{RXInactivityUs: 5000}, fs, nil)
	assert.Equal(t, 5*time.Millisecond, d2.RXInactivityTimeout())
}

func TestFramingErrorRestartsRx(t *testing.T) {
	fs := &fakeStarter{}
	d := New(Config{}, fs, nil)
	d.HandleFramingError()
	assert.EqualValues(t, 1, d.Stats().FramingErrors)
	assert.Equal(t, RxEnabled, d.RxState())
}
