// Package console implements the guest side of a paravirtual console: a
// blocking read/write handle backed by a shared ring page and a
// notification port. A single worker goroutine owns all ring and queue
// state; callers and the port handler reach it only through a bounded
// mailbox.
package console

import (
	"fmt"
	"log/slog"

	"github.com/protoben/pvcons/internal/frame"
	"github.com/protoben/pvcons/internal/port"
	"github.com/protoben/pvcons/internal/ring"
)

// Console is the caller-facing handle. It owns nothing but the sending end
// of the worker's mailbox and is safe for concurrent use; requests of the
// same kind are served in submission order.
type Console struct {
	mailbox chan<- message
}

// Init maps the shared page for the given machine frame, lays the ring view
// over it, starts the worker and registers the port handler. A failed direct
// mapping is retried once after an explicit mapping request; a second
// failure is fatal.
func Init(frameNo uint64, notify port.Port, mapper frame.Mapper) (*Console, error) {
	page, err := mapper.Map(frameNo)
	if err != nil {
		slog.Debug("console: direct map failed, requesting explicit mapping",
			"frame", frameNo, "err", err)
		if reqErr := mapper.RequestMapping(frameNo); reqErr != nil {
			return nil, fmt.Errorf("console: request mapping for frame %#x: %w", frameNo, reqErr)
		}
		page, err = mapper.Map(frameNo)
		if err != nil {
			return nil, fmt.Errorf("console: map frame %#x: %w", frameNo, err)
		}
	}

	rings, err := ring.Attach(page)
	if err != nil {
		return nil, fmt.Errorf("console: attach rings: %w", err)
	}

	eng := newEngine(rings, notify)
	go eng.run()

	// The handler only ever enqueues a wake-up; it never touches ring or
	// queue state, so it is safe to run concurrently with the worker.
	notify.Subscribe(func() {
		eng.mailbox <- message{kind: msgAdvance}
	})

	// Kick once so input produced before we attached is drained.
	eng.mailbox <- message{kind: msgAdvance}

	return &Console{mailbox: eng.mailbox}, nil
}

// Write sends text to the console and blocks until every byte has been
// pushed onto the output ring. Line feeds are expanded to CRLF on the way
// out.
func (c *Console) Write(text string) {
	done := newOneshot[struct{}]()
	c.mailbox <- message{kind: msgWrite, payload: expandLF([]byte(text)), wrote: done}
	done.wait()
}

// Read blocks until n bytes have arrived on the input ring and returns them
// with CRLF pairs collapsed to LF. A read for bytes that never arrive
// blocks forever; callers needing timeouts must race the call externally.
func (c *Console) Read(n int) []byte {
	done := newOneshot[[]byte]()
	c.mailbox <- message{kind: msgRead, count: n, read: done}
	return done.wait()
}
