package handlers

import "github.com/fieldcore/linkcore/pkg/command"

const (
	regOpReadID         = 0x00
	regOpReadTempMilliC = 0x01
	regOpReadTempRaw    = 0x02
	regOpReadConfig     = 0x03
	regOpWriteConfig    = 0x04
	regOpReadHighLimit  = 0x05
	regOpWriteHighLimit = 0x06
	regOpReadLowLimit   = 0x07
	regOpWriteLowLimit  = 0x08
)

func putU16(resp []byte, v uint16) int {
	resp[0] = byte(v)
	resp[1] = byte(v >> 8)
	return 2
}

// SensorRegmapHandler services the SENSOR_REGMAP command: a small
// register-level passthrough to a temperature sensor at a 7-bit bus
// address, modeled on a typical digital-temperature-sensor register
// map (device id, raw/scaled temperature, config, alarm limits).
func SensorRegmapHandler(sensor SensorRegmap) command.HandlerFunc {
	return func(req []byte, resp []byte) (int, command.Status) {
		if len(req) < 2 {
			return 0, command.StatusInvalid
		}
		op := req[0]
		addr7 := req[1] & 0x7F

		switch op {
		case regOpReadID:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			id, err := sensor.RegReadID(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			return putU16(resp, id), command.StatusOK

		case regOpReadTempMilliC:
			if len(resp) < 4 {
				return 0, command.StatusBounds
			}
			mc, err := sensor.RegReadTempMilliC(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			v := uint32(mc)
			resp[0], resp[1], resp[2], resp[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
			return 4, command.StatusOK

		case regOpReadTempRaw:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			raw, err := sensor.RegReadTempRaw(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			return putU16(resp, raw), command.StatusOK

		case regOpReadConfig:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			cfg, err := sensor.RegReadConfig(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			return putU16(resp, cfg), command.StatusOK

		case regOpWriteConfig:
			if len(req) < 4 {
				return 0, command.StatusInvalid
			}
			cfg := uint16(req[2]) | uint16(req[3])<<8
			if err := sensor.RegWriteConfig(addr7, cfg); err != nil {
				return 0, command.StatusInternal
			}
			return 0, command.StatusOK

		case regOpReadHighLimit:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			v, err := sensor.RegReadHighLimit(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			return putU16(resp, v), command.StatusOK

		case regOpWriteHighLimit:
			if len(req) < 4 {
				return 0, command.StatusInvalid
			}
			v := uint16(req[2]) | uint16(req[3])<<8
			if err := sensor.RegWriteHighLimit(addr7, v); err != nil {
				return 0, command.StatusInternal
			}
			return 0, command.StatusOK

		case regOpReadLowLimit:
			if len(resp) < 2 {
				return 0, command.StatusBounds
			}
			v, err := sensor.RegReadLowLimit(addr7)
			if err != nil {
				return 0, command.StatusInternal
			}
			return putU16(resp, v), command.StatusOK

		case regOpWriteLowLimit:
			if len(req) < 4 {
				return 0, command.StatusInvalid
			}
			v := uint16(req[2]) | uint16(req[3])<<8
			if err := sensor.RegWriteLowLimit(addr7, v); err != nil {
				return 0, command.StatusInternal
			}
			return 0, command.StatusOK

		default:
			return 0, command.StatusUnsupported
		}
	}
}
