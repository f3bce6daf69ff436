package handlers

import "github.com/fieldcore/linkcore/pkg/command"

const (
	busOpWrite     = 0x00
	busOpRead      = 0x01
	busOpWriteRead = 0x02
	busOpScan      = 0x10
)

// BusTransferHandler services the BUS_TRANSFER command: write, read,
// write-then-read, and a bus scan, each addressed by a 7-bit address.
func BusTransferHandler(bus BusTransfer) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(req) < 2 {
			return 0, command.StatusInvalid
		}
		op := req[0]
		addr7 := req[1] & 0x7F

		if op == busOpScan {
			if len(resp) == 0 {
				return 0, command.StatusBounds
			}
			found := bus.BusScan()
			n := 0
			resp[0] = 0
			for _, a := range found {
				if 1+n >= len(resp) {
					break
				}
				resp[1+n] = a
				n++
			}
			resp[0] = byte(n)
			return n + 1, command.StatusOK
		}

		if len(req) < 6 {
			return 0, command.StatusInvalid
		}
		wlen := uint16(req[2]) | uint16(req[3])<<8
		rlen := uint16(req[4]) | uint16(req[5])<<8
		var wdata []byte
		if len(req) >= 6+int(wlen) {
			wdata = req[6 : 6+int(wlen)]
		}

		switch op {
		case busOpWrite:
			if wdata == nil {
				return 0, command.StatusInvalid
			}
			if err := bus.BusWrite(addr7, wdata); err != nil {
				return 0, command.StatusInternal
			}
			return 0, command.StatusOK
		case busOpRead:
			if len(resp) < int(rlen) {
				return 0, command.StatusBounds
			}
			if err := bus.BusRead(addr7, resp[:rlen]); err != nil {
				return 0, command.StatusInternal
			}
			return int(rlen), command.StatusOK
		case busOpWriteRead:
			if wdata == nil {
				return 0, command.StatusInvalid
			}
			if len(resp) < int(rlen) {
				return 0, command.StatusBounds
			}
			if err := bus.BusWriteRead(addr7, wdata, resp[:rlen]); err != nil {
				return 0, command.StatusInternal
			}
			return int(rlen), command.StatusOK
		default:
			return 0, command.StatusInvalid
		}
	}
}
