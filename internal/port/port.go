// Package port abstracts the asynchronous notification channel shared with
// the hypervisor. A port carries no payload: raising it wakes the remote
// side, and a subscribed handler runs on every remote raise.
package port

import "sync"

// Port is a bidirectional wake-up channel. Raise signals the remote side;
// Subscribe registers the handler invoked on every remote signal. The
// handler may run concurrently with anything else and must only hand the
// event off, never touch shared state directly.
type Port interface {
	Raise() error
	Subscribe(handler func())
	Close() error
}

// chanPort is one end of an in-process port pair. Raises coalesce: a pending
// undelivered wake-up absorbs further raises, which matches the pure wake-up
// semantics of the real channel.
type chanPort struct {
	raise  chan<- struct{}
	notify <-chan struct{}

	mu      sync.Mutex
	quit    chan struct{}
	started bool
}

// Pair returns two cross-connected in-process ports. Tests and the loopback
// harness use a pair where a real deployment has an event channel.
func Pair() (Port, Port) {
	ab := make(chan struct{}, 1)
	ba := make(chan struct{}, 1)
	a := &chanPort{raise: ab, notify: ba, quit: make(chan struct{})}
	b := &chanPort{raise: ba, notify: ab, quit: make(chan struct{})}
	return a, b
}

func (p *chanPort) Raise() error {
	select {
	case p.raise <- struct{}{}:
	default:
	}
	return nil
}

func (p *chanPort) Subscribe(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	go func() {
		for {
			select {
			case <-p.notify:
				handler()
			case <-p.quit:
				return
			}
		}
	}()
}

func (p *chanPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.quit:
	default:
		close(p.quit)
	}
	return nil
}
