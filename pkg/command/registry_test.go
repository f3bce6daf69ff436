package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func echoHandler(req []byte, resp []byte) (int, Status) {
	n := copy(resp, req)
	return n, StatusOK
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := New(4)
	assert.True(t, r.Register(1, echoHandler))
	assert.False(t, r.Register(1, echoHandler))
}

func TestRegisterRejectsOverCapacity(t *testing.T) {
	r := New(2)
	assert.True(t, r.Register(1, echoHandler))
	assert.True(t, r.Register(2, echoHandler))
	assert.False(t, r.Register(3, echoHandler))
}

func TestDispatchFoundAndNotFound(t *testing.T) {
	r := New(4)
	r.Register(5, echoHandler)

	resp := make([]byte, 16)
	n, status, found := r.Dispatch(5, []byte("hi"), resp)
	assert.True(t, found)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, []byte("hi"), resp[:n])

	_, status, found = r.Dispatch(0x77, nil, resp)
	assert.False(t, found)
	assert.Equal(t, StatusUnsupported, status)
}

func TestPackParseRequestRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	n, ok := PackRequest(0x0005, []byte("Hi!OK"), buf)
	assert.True(t, ok)

	id, payload, ok := ParseRequest(buf[:n])
	assert.True(t, ok)
	assert.EqualValues(t, 0x0005, id)
	assert.Equal(t, []byte("Hi!OK"), payload)
}

func TestPackParseResponseRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	n, ok := PackResponse(0x0002, StatusOK, []byte{0x15, 0xCD, 0x5B, 0x07, 0, 0, 0, 0}, buf)
	assert.True(t, ok)

	id, status, payload, ok := ParseResponse(buf[:n])
	assert.True(t, ok)
	assert.EqualValues(t, 0x0002, id)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, []byte{0x15, 0xCD, 0x5B, 0x07, 0, 0, 0, 0}, payload)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	buf := make([]byte, 64)
	n, _ := PackRequest(1, []byte("hello"), buf)
	_, _, ok := ParseRequest(buf[:n-1])
	assert.False(t, ok)
}

func TestUnknownCommandEnvelope(t *testing.T) {
	r := New(4)
	req := make([]byte, 16)
	n, _ := PackRequest(0x7777, nil, req)

	id, payload, ok := ParseRequest(req[:n])
	assert.True(t, ok)
	resp := make([]byte, 16)
	respLen, status, found := r.Dispatch(id, payload, resp)
	assert.False(t, found)

	respBuf := make([]byte, 16)
	respN, _ := PackResponse(id, status, resp[:respLen], respBuf)
	gotID, gotStatus, gotPayload, ok := ParseResponse(respBuf[:respN])
	assert.True(t, ok)
	assert.EqualValues(t, 0x7777, gotID)
	assert.Equal(t, StatusUnsupported, gotStatus)
	assert.Len(t, gotPayload, 0)
}
