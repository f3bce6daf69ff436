// Package boardcfg loads the static, per-board descriptor (board name,
// command registry size, transport limits, link devices and ring
// sizes) from an ini-style
// file, the same format the object-dictionary loader in this codebase's
// lineage has always used for static device description.
package boardcfg

import (
	"errors"
	"fmt"

	"gopkg.in/ini.v1"
)

// ErrUnsupportedLinkKind is wrapped into Load's error when a [link.*]
// section names a kind other than "uart" or "can".
var ErrUnsupportedLinkKind = errors.New("boardcfg: unsupported link kind")

// ErrLinkMissingDevice is wrapped into Load's error when a [link.*]
// section has no device key.
var ErrLinkMissingDevice = errors.New("boardcfg: link missing device")

// ErrNoLinks is wrapped into Load's error when a descriptor declares no
// [link.*] sections at all.
var ErrNoLinks = errors.New("boardcfg: no links configured")

// LinkConfig describes one configured link instance.
type LinkConfig struct {
	Name           string
	Kind           string // "uart" or "can"
	Device         string // tty path or CAN interface name
	Baud           uint32 // uart only
	CANID          uint32 // can only
	TXRing         int
	RXRing         int
	RXChunk        int
	RXInactivityUs int
}

// TransportConfig mirrors transport.Config without importing that
// package, so boardcfg stays a leaf dependency.
type TransportConfig struct {
	MaxFramePayload int
	MaxFragments    int
	ReassemblyMax   int
}

// Board is the fully parsed board descriptor.
type Board struct {
	Name            string
	CommandRegistry int
	Transport       TransportConfig
	Links           []LinkConfig
}

// Load parses a board descriptor from file, which may be anything
// gopkg.in/ini.v1 accepts: a path, []byte, or io.Reader.
func Load(file any) (*Board, error) {
	cfg, err := ini.Load(file)
	if err != nil {
		return nil, fmt.Errorf("boardcfg: load: %w", err)
	}

	board := cfg.Section("board")
	b := &Board{
		Name:            board.Key("name").MustString("board"),
		CommandRegistry: board.Key("command_registry_max").MustInt(32),
	}

	tr := cfg.Section("transport")
	b.Transport = TransportConfig{
		MaxFramePayload: tr.Key("max_frame_payload").MustInt(128),
		MaxFragments:    tr.Key("max_fragments").MustInt(64),
		ReassemblyMax:   tr.Key("reassembly_max").MustInt(2048),
	}

	for _, section := range cfg.Sections() {
		name := section.Name()
		if len(name) < 5 || name[:5] != "link." {
			continue
		}
		link := LinkConfig{
			Name:           name[5:],
			Kind:           section.Key("kind").MustString("uart"),
			Device:         section.Key("device").String(),
			Baud:           uint32(section.Key("baud").MustUint(115200)),
			CANID:          uint32(section.Key("can_id").MustUint(0x700)),
			TXRing:         section.Key("tx_ring").MustInt(2048),
			RXRing:         section.Key("rx_ring").MustInt(1024),
			RXChunk:        section.Key("rx_chunk").MustInt(64),
			RXInactivityUs: section.Key("rx_inactivity_us").MustInt(20000),
		}
		if link.Kind != "uart" && link.Kind != "can" {
			return nil, fmt.Errorf("%w: link %q kind %q", ErrUnsupportedLinkKind, link.Name, link.Kind)
		}
		if link.Device == "" {
			return nil, fmt.Errorf("%w: link %q", ErrLinkMissingDevice, link.Name)
		}
		b.Links = append(b.Links, link)
	}

	if len(b.Links) == 0 {
		return nil, fmt.Errorf("%w: no [link.*] sections found", ErrNoLinks)
	}
	return b, nil
}
