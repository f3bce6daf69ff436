package handlers

import "github.com/fieldcore/linkcore/pkg/command"

// Uptime returns milliseconds since boot as a little-endian u64.
func Uptime(clock Clock) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(resp) < 8 {
			return 0, command.StatusBounds
		}
		ms := clock.UptimeMs()
		for i := 0; i < 8; i++ {
			resp[i] = byte(ms >> (8 * i))
		}
		return 8, command.StatusOK
	}
}
