package handlers

import "github.com/fieldcore/linkcore/pkg/command"

// FlashRead services the FLASH_READ command: request is `addr:u32 LE,
// len:u16 LE`; response is len bytes read from flash. A read that
// returns fewer than len bytes is reported as INTERNAL.
func FlashRead(reader FlashReader) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(req) < 6 {
			return 0, command.StatusInvalid
		}
		addr := uint32(req[0]) | uint32(req[1])<<8 | uint32(req[2])<<16 | uint32(req[3])<<24
		length := uint16(req[4]) | uint16(req[5])<<8
		if len(resp) < int(length) {
			return 0, command.StatusBounds
		}
		n := reader.FlashRead(addr, resp[:length])
		if n != int(length) {
			return n, command.StatusInternal
		}
		return n, command.StatusOK
	}
}
