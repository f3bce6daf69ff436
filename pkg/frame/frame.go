// Package frame defines the on-wire layout of a transport frame: sync
// bytes, a fixed little-endian header, an opaque payload, and a
// trailing CRC-32.
package frame

import "encoding/binary"

const (
	// Sync0 and Sync1 are the two bytes that mark the start of a frame.
	Sync0 byte = 0xA5
	Sync1 byte = 0x5A

	// Version is the only wire version this package understands.
	Version uint8 = 1

	// HeaderLen is the size in bytes of the header, from ver through
	// payload_len inclusive (sync bytes and CRC are not part of it).
	HeaderLen = 10

	// CRCLen is the size in bytes of the trailing CRC-32.
	CRCLen = 4
)

// Flags are the header flag bits.
type Flags uint8

const (
	FlagStart  Flags = 1 << 0
	FlagMiddle Flags = 1 << 1
	FlagEnd    Flags = 1 << 2
	// bit 3 is reserved
	FlagResp Flags = 1 << 4
)

// Header is the fixed, length-delimited frame header (§3 of the wire
// format): ver, flags, session, frag_index, frag_count, payload_len.
type Header struct {
	Ver        uint8
	Flags      Flags
	Session    uint16
	FragIndex  uint16
	FragCount  uint16
	PayloadLen uint16
}

// Encode writes the header into buf, which must be at least HeaderLen
// bytes long.
func (h Header) Encode(buf []byte) {
	buf[0] = h.Ver
	buf[1] = uint8(h.Flags)
	binary.LittleEndian.PutUint16(buf[2:4], h.Session)
	binary.LittleEndian.PutUint16(buf[4:6], h.FragIndex)
	binary.LittleEndian.PutUint16(buf[6:8], h.FragCount)
	binary.LittleEndian.PutUint16(buf[8:10], h.PayloadLen)
}

// DecodeHeader reads a header from buf, which must be at least
// HeaderLen bytes long.
func DecodeHeader(buf []byte) Header {
	return Header{
		Ver:        buf[0],
		Flags:      Flags(buf[1]),
		Session:    binary.LittleEndian.Uint16(buf[2:4]),
		FragIndex:  binary.LittleEndian.Uint16(buf[4:6]),
		FragCount:  binary.LittleEndian.Uint16(buf[6:8]),
		PayloadLen: binary.LittleEndian.Uint16(buf[8:10]),
	}
}
