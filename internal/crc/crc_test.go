package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumEmpty(t *testing.T) {
	assert.EqualValues(t, 0, Checksum(nil))
}

func TestChecksumCheckString(t *testing.T) {
	assert.EqualValues(t, 0xCBF43926, Checksum([]byte("123456789")))
}

func TestChecksumIncremental(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole := Checksum(data)

	c := New()
	c.Write(data[:20])
	c.Write(data[20:])
	assert.EqualValues(t, whole, c.Sum())
}

func TestSingleByteByByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	c := New()
	for _, b := range data {
		c.Single(b)
	}
	assert.EqualValues(t, Checksum(data), c.Sum())
}
