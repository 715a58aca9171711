// Package peer implements the hypervisor side of the console ring page. It
// exists so the driver has something real to talk to without a hypervisor:
// integration tests and the loopback demo run a Peer over the same page the
// driver attached to.
package peer

import (
	"sync"

	"github.com/protoben/pvcons/internal/port"
	"github.com/protoben/pvcons/internal/ring"
)

// Peer consumes the driver's output ring and produces onto its input ring,
// raising the driver's port after activity. Input that does not fit in the
// ring is held back and flushed on the next pump.
type Peer struct {
	rings  *ring.Buffer
	notify port.Port

	mu       sync.Mutex
	onOutput func([]byte)
	output   []byte // drained from the output ring, in arrival order
	backlog  []byte // input waiting for ring room
}

// New lays the peer's ring view over the page. Call Start to begin serving
// port wake-ups.
func New(page []byte, notify port.Port) (*Peer, error) {
	rings, err := ring.Attach(page)
	if err != nil {
		return nil, err
	}
	return &Peer{rings: rings, notify: notify}, nil
}

// Start subscribes the peer to its port so driver-side activity triggers a
// pump.
func (p *Peer) Start() {
	p.notify.Subscribe(func() { p.Pump() })
}

// SetOnOutput installs an observer for every chunk drained from the output
// ring. The observer runs outside the peer's lock.
func (p *Peer) SetOnOutput(fn func([]byte)) {
	p.mu.Lock()
	p.onOutput = fn
	p.mu.Unlock()
}

// SendInput queues bytes for the driver's input ring and pumps.
func (p *Peer) SendInput(data []byte) {
	p.mu.Lock()
	p.backlog = append(p.backlog, data...)
	p.mu.Unlock()
	p.Pump()
}

// Pump drains the output ring, flushes backlogged input into the input ring
// and raises the driver's port if either side made progress.
func (p *Peer) Pump() {
	p.mu.Lock()

	activity := false
	var drained []byte
	if data, ok := p.rings.ReadOutput(); ok {
		p.output = append(p.output, data...)
		drained = data
		activity = true
	}
	if len(p.backlog) > 0 {
		if n := p.rings.WriteInput(p.backlog); n > 0 {
			p.backlog = p.backlog[n:]
			activity = true
		}
	}
	onOutput := p.onOutput
	p.mu.Unlock()

	if drained != nil && onOutput != nil {
		onOutput(drained)
	}
	if activity {
		p.notify.Raise()
	}
}

// Output returns a copy of everything drained from the output ring so far.
func (p *Peer) Output() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.output...)
}

// TakeOutput returns the drained output and resets the capture buffer.
func (p *Peer) TakeOutput() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.output
	p.output = nil
	return out
}
