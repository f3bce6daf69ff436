package handlers

import "github.com/fieldcore/linkcore/pkg/command"

const (
	linkCtrlOpGet = 0x00
	linkCtrlOpSet = 0x01
)

// LinkControl services the LINK_CONTROL command: op 0 (get) returns
// `[advertising:u8, connected:u8]`; op 1 (set) takes `[en:u8]` and
// returns empty.
func LinkControl(status LinkStatus) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(req) < 1 {
			return 0, command.StatusInvalid
		}
		switch req[0] {
		case linkCtrlOpGet:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			adv, conn := status.LinkGetStatus()
			resp[0] = boolByte(adv)
			resp[1] = boolByte(conn)
			return 2, command.StatusOK
		case linkCtrlOpSet:
			if len(req) < 2 {
				return 0, command.StatusInvalid
			}
			if err := status.LinkSetAdvertising(req[1] != 0); err != nil {
				return 0, command.StatusInternal
			}
			return 0, command.StatusOK
		default:
			return 0, command.StatusUnsupported
		}
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
