package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// systemClock implements handlers.Clock against the wall clock.
type systemClock struct{ boot time.Time }

func (c systemClock) UptimeMs() uint64 {
	return uint64(time.Since(c.boot).Milliseconds())
}

// fileFlash implements handlers.FlashReader by reading a flat backing
// file, standing in for a raw flash read primitive on real hardware.
type fileFlash struct {
	path string
	log  *logrus.Entry
}

func (f fileFlash) FlashRead(addr uint32, dst []byte) int {
	file, err := os.Open(f.path)
	if err != nil {
		f.log.WithError(err).Warn("controller: flash backing file open failed")
		return 0
	}
	defer file.Close()
	n, err := file.ReadAt(dst, int64(addr))
	if err != nil && n == 0 {
		return 0
	}
	return n
}

// processRebooter implements handlers.Rebooter by exiting the process
// after a delay, standing in for sys_reboot on real hardware.
type processRebooter struct {
	log *logrus.Entry
}

func (r processRebooter) RebootSchedule(delayMs uint32) {
	go func() {
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
		r.log.Warn("controller: scheduled reboot firing")
		os.Exit(0)
	}()
}

// wirelessLinkStatus implements handlers.LinkStatus against a
// bool-pair the wireless bring-up code updates as connection state
// changes.
type wirelessLinkStatus struct {
	advertising *bool
	connected   *bool
	setAdv      func(bool) error
}

func (w wirelessLinkStatus) LinkGetStatus() (bool, bool) {
	return *w.advertising, *w.connected
}

func (w wirelessLinkStatus) LinkSetAdvertising(enabled bool) error {
	*w.advertising = enabled
	if w.setAdv != nil {
		return w.setAdv(enabled)
	}
	return nil
}
