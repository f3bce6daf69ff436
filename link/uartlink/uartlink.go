// Package uartlink backs a link.Driver with a real POSIX tty: raw
// mode and baud rate are configured with termios ioctls, and a
// background goroutine stands in for the DMA RX path by copying bytes
// out of the device as they arrive.
package uartlink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fieldcore/linkcore/link"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ErrUnsupportedBaud is wrapped into Open's error when the requested
// rate has no termios constant below, i.e. the board descriptor asked
// for an interface speed this driver does not support.
var ErrUnsupportedBaud = errors.New("uartlink: unsupported baud rate")

// ErrPortDisconnected is wrapped into the error surfaces that indicate
// the underlying device dropped out from under us: a non-timeout read
// failure in the background reader, or a failed write from StartTx.
var ErrPortDisconnected = errors.New("uartlink: port disconnected")

// Port is a link.Starter backed by an open serial device.
type Port struct {
	f      *os.File
	fd     int
	driver *link.Driver
	log    *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens path (e.g. "/dev/ttyUSB0"), configures it as an 8N1 raw
// port at baud, and returns a Port. Bind must be called with the
// owning Driver before Run.
func Open(path string, baud uint32, log *logrus.Entry) (*Port, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("uartlink: open %s: %w", path, err)
	}
	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("uartlink: tcgetattr: %w", err)
	}

	rate, err := baudConst(baud)
	if err != nil {
		f.Close()
		return nil, err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	t.Ispeed = rate
	t.Ospeed = rate

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("uartlink: tcsetattr: %w", err)
	}

	return &Port{f: f, fd: fd, log: log}, nil
}

func baudConst(baud uint32) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
}

// Bind associates the Port with the Driver it feeds.
func (p *Port) Bind(d *link.Driver) {
	p.driver = d
}

// Run starts the background reader goroutine. inactivity bounds how
// long a single Read may block: the deadline is re-armed before every
// read, so a line that goes quiet mid-frame still returns control to
// check ctx rather than blocking forever on a frame that will never
// arrive. It returns once ctx is canceled or the device is closed.
func (p *Port) Run(ctx context.Context, inactivity time.Duration) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.readLoop(runCtx, inactivity)
}

func (p *Port) readLoop(ctx context.Context, inactivity time.Duration) {
	defer p.wg.Done()
	buf := make([]byte, link.DefaultRXChunk)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if inactivity > 0 {
			p.f.SetReadDeadline(time.Now().Add(inactivity))
		}
		n, err := p.f.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if os.IsTimeout(err) {
				// No bytes within the inactivity window; nothing
				// buffered to flush at this layer, just recheck ctx.
				continue
			}
			p.log.WithError(fmt.Errorf("%w: %v", ErrPortDisconnected, err)).Warn("uartlink: read error, restarting rx")
			p.driver.HandleFramingError()
			continue
		}
		if n > 0 {
			p.driver.HandleRxReady(buf[:n])
		}
	}
}

// Close stops the reader goroutine and closes the device.
func (p *Port) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return p.f.Close()
}

// StartTx writes data to the device synchronously and reports
// completion immediately; a real DMA UART would instead start an
// asynchronous transfer and call HandleTxDone from its completion
// interrupt.
func (p *Port) StartTx(data []byte) error {
	n, err := p.f.Write(data)
	if err != nil {
		p.log.WithError(err).Warn("uartlink: write failed, treating port as disconnected")
		return fmt.Errorf("uartlink: write: %w: %v", ErrPortDisconnected, err)
	}
	p.driver.HandleTxDone(n)
	return nil
}

// StartRxChunk is a no-op: the read loop above drives HandleRxReady
// directly instead of using the chunk double-buffer.
func (p *Port) StartRxChunk(chunk []byte) error {
	return nil
}
