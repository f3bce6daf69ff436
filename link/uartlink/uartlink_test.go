package uartlink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestBaudConstKnownRates(t *testing.T) {
	rate, err := baudConst(115200)
	assert.NoError(t, err)
	assert.EqualValues(t, unix.B115200, rate)
}

func TestBaudConstRejectsUnsupportedRate(t *testing.T) {
	_, err := baudConst(4800)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedBaud))
}
