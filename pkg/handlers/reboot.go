package handlers

import "github.com/fieldcore/linkcore/pkg/command"

// DefaultRebootDelayMs is the delay between enqueuing the REBOOT
// acknowledgement and the reset actually firing.
const DefaultRebootDelayMs = 50

// Reboot is the only handler permitted a side effect after its
// response is enqueued: it schedules a reset and always returns OK
// with an empty payload.
func Reboot(rebooter Rebooter) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		rebooter.RebootSchedule(DefaultRebootDelayMs)
		return 0, command.StatusOK
	}
}
