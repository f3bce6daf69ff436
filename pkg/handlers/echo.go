package handlers

import "github.com/fieldcore/linkcore/pkg/command"

// Echo returns the request payload unchanged. BOUNDS if it does not
// fit the caller's response capacity.
func Echo() command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(resp) < len(req) {
			return 0, command.StatusBounds
		}
		n := copy(resp, req)
		return n, command.StatusOK
	}
}
