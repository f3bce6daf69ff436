// Command controller brings up the on-device communication core: it
// loads a board descriptor, opens the configured links, and wires
// each one through a transport and a command-transport binding onto a
// single shared command registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fieldcore/linkcore/internal/boardcfg"
	"github.com/fieldcore/linkcore/link"
	"github.com/fieldcore/linkcore/link/canlink"
	"github.com/fieldcore/linkcore/link/uartlink"
	"github.com/fieldcore/linkcore/pkg/binding"
	"github.com/fieldcore/linkcore/pkg/command"
	"github.com/fieldcore/linkcore/pkg/handlers"
	"github.com/fieldcore/linkcore/pkg/transport"
	"github.com/sirupsen/logrus"
)

// buildVersion is set at build time via -ldflags; it backs GET_VERSION.
var buildVersion = "dev"

const (
	tickPeriod      = 2 * time.Millisecond
	heartbeatPeriod = 1 * time.Second
)

type linkRuntime struct {
	name      string
	driver    *link.Driver
	transport *transport.Transport
	binding   *binding.Binding
}

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())
	logrus.SetLevel(logrus.InfoLevel)

	boardPath := flag.String("board", "board.ini", "board descriptor path")
	flashPath := flag.String("flash", "flash.img", "flash backing file for FLASH_READ")
	flag.Parse()

	board, err := boardcfg.Load(*boardPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "controller: load board descriptor: %v\n", err)
		os.Exit(1)
	}

	registry := command.New(board.CommandRegistry)
	clock := systemClock{boot: time.Now()}
	flash := fileFlash{path: *flashPath, log: log}
	rebooter := processRebooter{log: log}

	advertising, connected := false, false
	linkStatus := wirelessLinkStatus{advertising: &advertising, connected: &connected}

	registry.Register(0x0001, handlers.Version(buildVersion))
	registry.Register(0x0002, handlers.Uptime(clock))
	registry.Register(0x0003, handlers.FlashRead(flash))
	registry.Register(0x0004, handlers.Reboot(rebooter))
	registry.Register(0x0005, handlers.Echo())
	registry.Register(0x0200, handlers.LinkControl(linkStatus))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtimes := make([]*linkRuntime, 0, len(board.Links))
	for _, lc := range board.Links {
		rt, err := bringUpLink(ctx, lc, board.Transport, registry, log)
		if err != nil {
			log.WithError(err).WithField("link", lc.Name).Error("controller: link bring-up failed")
			continue
		}
		runtimes = append(runtimes, rt)
	}
	if len(runtimes) == 0 {
		log.Fatal("controller: no links came up")
	}

	log.WithField("board", board.Name).Info("controller: running")
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()
	lastHeartbeat := time.Now()
	for range ticker.C {
		for _, rt := range runtimes {
			pumpLink(rt)
		}
		if now := time.Now(); now.Sub(lastHeartbeat) >= heartbeatPeriod {
			lastHeartbeat = now
			heartbeat(log, clock, runtimes)
		}
	}
}

// heartbeat stands in for a hardware LED blink: a real board toggles a
// GPIO on this tick, this one logs per-link stats at Info level instead.
func heartbeat(log *logrus.Entry, clock systemClock, runtimes []*linkRuntime) {
	for _, rt := range runtimes {
		s := rt.transport.Stats()
		log.WithFields(logrus.Fields{
			"link":         rt.name,
			"uptime_ms":    clock.UptimeMs(),
			"messages_ok":  s.MessagesOK,
			"frames_ok":    s.FramesOK,
			"crc_errors":   s.FramesCRCErr,
			"sync_drops":   s.FramesSyncDrop,
			"dropped_msgs": s.MessagesDropped,
		}).Info("controller: heartbeat")
	}
}

func bringUpLink(ctx context.Context, lc boardcfg.LinkConfig, tc boardcfg.TransportConfig, registry *command.Registry, log *logrus.Entry) (*linkRuntime, error) {
	linkLog := log.WithField("link", lc.Name)
	driverCfg := link.Config{TXRing: lc.TXRing, RXRing: lc.RXRing, RXChunk: lc.RXChunk, RXInactivityUs: lc.RXInactivityUs}

	switch lc.Kind {
	case "uart":
		port, err := uartlink.Open(lc.Device, lc.Baud, linkLog)
		if err != nil {
			return nil, err
		}
		d := link.New(driverCfg, port, linkLog)
		port.Bind(d)
		port.Run(ctx, d.RXInactivityTimeout())
		return newRuntime(lc.Name, d, tc, registry, linkLog), nil

	case "can":
		tunnel, err := canlink.Open(lc.Device, lc.CANID, linkLog)
		if err != nil {
			return nil, err
		}
		d := link.New(driverCfg, tunnel, linkLog)
		tunnel.Bind(d)
		go func() {
			if err := tunnel.Run(); err != nil {
				linkLog.WithError(err).Error("controller: can link run exited")
			}
		}()
		return newRuntime(lc.Name, d, tc, registry, linkLog), nil

	default:
		return nil, fmt.Errorf("unknown link kind %q", lc.Kind)
	}
}

// newRuntime wires a transport and a binding onto the same driver. The
// transport needs the binding's OnMessage as its receive callback, and
// the binding needs the transport as its Sender, so construction goes
// through a forwarding shim that's filled in once both sides exist.
func newRuntime(name string, d *link.Driver, tc boardcfg.TransportConfig, registry *command.Registry, log *logrus.Entry) *linkRuntime {
	var b *binding.Binding
	forward := func(session uint16, payload []byte, isResponse bool) {
		b.OnMessage(session, payload, isResponse)
	}
	reassemblyMax := tc.ReassemblyMax
	if reassemblyMax <= 0 {
		reassemblyMax = transport.DefaultReassemblyMax
	}
	cfg := transport.Config{
		MaxFramePayload: tc.MaxFramePayload,
		MaxFragments:    tc.MaxFragments,
		ReassemblyMax:   reassemblyMax,
	}
	tr := transport.New(cfg, d, forward, log)
	b = binding.New(registry, tr, reassemblyMax, log)

	return &linkRuntime{name: name, driver: d, transport: tr, binding: b}
}

func pumpLink(rt *linkRuntime) {
	buf := make([]byte, 256)
	for {
		n := rt.driver.Read(buf)
		if n == 0 {
			break
		}
		rt.transport.RxBytes(buf[:n])
	}
	rt.transport.TxPump()
	rt.binding.Tick()
	rt.driver.Process()
}
