package handlers

import "github.com/fieldcore/linkcore/pkg/command"

// Version returns a fixed ASCII version string. versionString is
// captured at handler construction (typically a build-time constant).
func Version(versionString string) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(resp) < len(versionString) {
			return 0, command.StatusBounds
		}
		n := copy(resp, versionString)
		return n, command.StatusOK
	}
}
