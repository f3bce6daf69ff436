// Package handlers implements the built-in commands: pure byte
// wrangling over a small set of external-collaborator interfaces.
// None of these handlers touch the transport or registry directly.
package handlers

// Clock reports monotonic uptime.
type Clock interface {
	UptimeMs() uint64
}

// FlashReader reads raw bytes out of on-device flash.
type FlashReader interface {
	// FlashRead copies up to len(dst) bytes starting at addr into dst
	// and returns the count actually read; 0 on failure.
	FlashRead(addr uint32, dst []byte) int
}

// Rebooter schedules a deferred reboot, allowing the response carrying
// the REBOOT acknowledgement to be fully enqueued first.
type Rebooter interface {
	RebootSchedule(delayMs uint32)
}

// LinkStatus exposes the wireless link's advertising/connection state
// for the LINK_CONTROL command.
type LinkStatus interface {
	LinkGetStatus() (advertising, connected bool)
	LinkSetAdvertising(enabled bool) error
}

// BusTransfer performs primitive operations against a shared bus
// (write/read/write-read/scan by 7-bit address), backing the
// BUS_TRANSFER command.
type BusTransfer interface {
	BusWrite(addr7 uint8, data []byte) error
	BusRead(addr7 uint8, dst []byte) error
	BusWriteRead(addr7 uint8, wdata []byte, rdst []byte) error
	// BusScan probes addresses 0x03..0x77 and returns the ones that
	// respond, in ascending order.
	BusScan() []uint8
}

// SensorRegmap exposes a small 16-bit register map over a sensor
// device at a 7-bit bus address, backing the SENSOR_REGMAP command.
type SensorRegmap interface {
	RegReadID(addr7 uint8) (uint16, error)
	RegReadTempMilliC(addr7 uint8) (int32, error)
	RegReadTempRaw(addr7 uint8) (uint16, error)
	RegReadConfig(addr7 uint8) (uint16, error)
	RegWriteConfig(addr7 uint8, cfg uint16) error
	RegReadHighLimit(addr7 uint8) (uint16, error)
	RegWriteHighLimit(addr7 uint8, v uint16) error
	RegReadLowLimit(addr7 uint8) (uint16, error)
	RegWriteLowLimit(addr7 uint8, v uint16) error
}
