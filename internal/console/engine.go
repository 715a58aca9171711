package console

import (
	"fmt"
	"log/slog"

	"github.com/protoben/pvcons/internal/port"
	"github.com/protoben/pvcons/internal/ring"
)

// mailboxDepth bounds the request mailbox. Senders block when it fills, which
// is the only backpressure on submission.
const mailboxDepth = 16

// pendingRead is a queued read request. remaining always equals the
// requested count minus len(accumulated).
type pendingRead struct {
	remaining   int
	accumulated []byte
	done        *oneshot[[]byte]
}

// pendingWrite is a queued write request, consumed front-to-back.
type pendingWrite struct {
	remaining []byte
	done      *oneshot[struct{}]
}

// engine is the console state machine. Exactly one goroutine runs it, and
// that goroutine is the sole mutator of the rings, the queues and the input
// accumulation buffer. Everything else talks to it through the mailbox.
type engine struct {
	rings   *ring.Buffer
	notify  port.Port
	mailbox chan message

	reads  []*pendingRead
	writes []*pendingWrite
	input  []byte // pulled from the ring, not yet claimed by a read
}

func newEngine(rings *ring.Buffer, notify port.Port) *engine {
	return &engine{
		rings:   rings,
		notify:  notify,
		mailbox: make(chan message, mailboxDepth),
	}
}

// run executes the worker loop for the lifetime of the console. The receive
// on the mailbox is the only suspension point.
func (e *engine) run() {
	for msg := range e.mailbox {
		e.step(msg)
	}
}

// step is one full loop iteration: classify the message, drain the input
// ring, satisfy pending reads, drain pending writes, and raise the port if
// any ring activity occurred.
func (e *engine) step(msg message) {
	switch msg.kind {
	case msgWrite:
		e.writes = append(e.writes, &pendingWrite{remaining: msg.payload, done: msg.wrote})
	case msgRead:
		e.reads = append(e.reads, &pendingRead{remaining: msg.count, done: msg.read})
	case msgAdvance:
		// Wake-up only; the ring re-examination below is the point.
	default:
		panic(fmt.Sprintf("console: invalid mailbox message kind %d", msg.kind))
	}

	pulled := e.drainInput()
	e.satisfyReads()
	pushed := e.drainWrites()

	if pulled || pushed {
		if err := e.notify.Raise(); err != nil {
			slog.Warn("console: raise notification port", "err", err)
		}
	}
}

// drainInput pulls everything the input ring has into the accumulation
// buffer and reports whether anything arrived.
func (e *engine) drainInput() bool {
	data, ok := e.rings.PullInput()
	if ok {
		e.input = append(e.input, data...)
	}
	return ok
}

// satisfyReads feeds the accumulation buffer into pending reads in FIFO
// order. The head read is fulfilled as soon as its count is reached; a
// partially satisfied head always means the buffer ran dry.
func (e *engine) satisfyReads() {
	for len(e.reads) > 0 {
		head := e.reads[0]

		if head.remaining > 0 {
			if len(e.input) == 0 {
				return
			}
			n := head.remaining
			if n > len(e.input) {
				n = len(e.input)
			}
			head.accumulated = append(head.accumulated, e.input[:n]...)
			e.input = e.input[n:]
			head.remaining -= n
		}

		if head.remaining < 0 {
			panic(fmt.Sprintf("console: pending read overfilled by %d bytes", -head.remaining))
		}
		if head.remaining > 0 {
			if len(e.input) != 0 {
				panic("console: input bytes left behind a partially satisfied read")
			}
			return
		}

		head.done.fulfill(collapseCRLF(head.accumulated))
		e.reads = e.reads[1:]
	}
}

// drainWrites pushes pending writes onto the output ring in FIFO order,
// stopping entirely at the first full-ring failure so later entries never
// overtake the head. Reports whether any byte went out.
func (e *engine) drainWrites() bool {
	pushed := false
	for len(e.writes) > 0 {
		head := e.writes[0]
		if len(head.remaining) == 0 {
			head.done.fulfill(struct{}{})
			e.writes = e.writes[1:]
			continue
		}
		for len(head.remaining) > 0 {
			if !e.rings.PushOutput(head.remaining[0]) {
				return pushed
			}
			head.remaining = head.remaining[1:]
			pushed = true
		}
	}
	return pushed
}
