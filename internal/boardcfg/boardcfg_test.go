package boardcfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadTestdataBoard(t *testing.T) {
	b, err := Load("testdata/board.ini")
	assert.NoError(t, err)
	assert.Equal(t, "fieldcore-rev2", b.Name)
	assert.Equal(t, 32, b.CommandRegistry)
	assert.Equal(t, 128, b.Transport.MaxFramePayload)
	if assert.Len(t, b.Links, 2) {
		assert.Equal(t, "serial", b.Links[0].Name)
		assert.Equal(t, "uart", b.Links[0].Kind)
		assert.EqualValues(t, 115200, b.Links[0].Baud)
		assert.Equal(t, 20000, b.Links[0].RXInactivityUs)
		assert.Equal(t, "wireless", b.Links[1].Name)
		assert.Equal(t, "can", b.Links[1].Kind)
		assert.EqualValues(t, 0x700, b.Links[1].CANID)
	}
}

func TestLoadRejectsMissingLinks(t *testing.T) {
	_, err := Load([]byte("[board]\nname = x\n"))
	assert.Error(t, err)
}

func TestLoadRejectsLinkWithoutDevice(t *testing.T) {
	_, err := Load([]byte("[board]\nname = x\n[link.bad]\nkind = uart\n"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrLinkMissingDevice))
}

func TestLoadRejectsUnsupportedLinkKind(t *testing.T) {
	_, err := Load([]byte("[board]\nname = x\n[link.bad]\nkind = i2c\ndevice = /dev/i2c-0\n"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLinkKind))
}

func TestLoadRejectsMissingLinksIsSentinel(t *testing.T) {
	_, err := Load([]byte("[board]\nname = x\n"))
	assert.True(t, errors.Is(err, ErrNoLinks))
}
