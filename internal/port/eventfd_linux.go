//go:build linux

package port

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

// EventfdPort is a Port backed by a pair of eventfds, the shape the
// hypervisor toolstack hands the guest on Linux hosts: raising writes the
// transmit fd, remote raises land on the receive fd.
type EventfdPort struct {
	rx int
	tx int

	mu      sync.Mutex
	quit    chan struct{}
	started bool
}

// NewEventfd wraps caller-provided receive and transmit eventfds. The port
// takes ownership of both descriptors.
func NewEventfd(rx, tx int) *EventfdPort {
	return &EventfdPort{rx: rx, tx: tx, quit: make(chan struct{})}
}

// EventfdPair creates two freshly allocated, cross-wired eventfd ports on
// the same host. Mostly useful for exercising the eventfd path without a
// hypervisor.
func EventfdPair() (*EventfdPort, *EventfdPort, error) {
	ab, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, nil, fmt.Errorf("port: create eventfd: %w", err)
	}
	ba, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(ab)
		return nil, nil, fmt.Errorf("port: create eventfd: %w", err)
	}
	return NewEventfd(ba, ab), NewEventfd(ab, ba), nil
}

func (p *EventfdPort) Raise() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.tx, buf[:]); err != nil {
		return fmt.Errorf("port: raise eventfd: %w", err)
	}
	return nil
}

func (p *EventfdPort) Subscribe(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	go p.watch(handler)
}

// watch polls the receive fd with a short timeout so Close can stop the
// loop without racing a blocked read.
func (p *EventfdPort) watch(handler func()) {
	fds := []unix.PollFd{{Fd: int32(p.rx), Events: unix.POLLIN}}
	var buf [8]byte

	for {
		select {
		case <-p.quit:
			return
		default:
		}

		n, err := unix.Poll(fds, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			slog.Warn("port: eventfd poll failed", "err", err)
			return
		}
		if n == 0 {
			continue
		}

		if _, err := unix.Read(p.rx, buf[:]); err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			slog.Warn("port: eventfd read failed", "err", err)
			return
		}
		handler()
	}
}

func (p *EventfdPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.quit:
		return nil
	default:
	}
	close(p.quit)
	unix.Close(p.rx)
	unix.Close(p.tx)
	return nil
}

var _ Port = (*EventfdPort)(nil)
