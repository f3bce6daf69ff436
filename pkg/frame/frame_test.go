package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Ver:        Version,
		Flags:      FlagStart | FlagEnd,
		Session:    0x1234,
		FragIndex:  2,
		FragCount:  5,
		PayloadLen: 200,
	}
	buf := make([]byte, HeaderLen)
	h.Encode(buf)

	got := DecodeHeader(buf)
	assert.Equal(t, h, got)
}

func TestHeaderByteLayout(t *testing.T) {
	h := Header{Ver: 1, Flags: FlagResp, Session: 0x0201, FragIndex: 0x0403, FragCount: 0x0605, PayloadLen: 0x0807}
	buf := make([]byte, HeaderLen)
	h.Encode(buf)

	assert.Equal(t, []byte{1, byte(FlagResp), 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, buf)
}

func TestFlagBits(t *testing.T) {
	f := FlagStart | FlagMiddle | FlagEnd | FlagResp
	assert.True(t, f&FlagStart != 0)
	assert.True(t, f&FlagMiddle != 0)
	assert.True(t, f&FlagEnd != 0)
	assert.True(t, f&FlagResp != 0)
}
