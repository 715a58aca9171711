package console

import (
	"bytes"
	"sync"
	"testing"

	"github.com/protoben/pvcons/internal/ring"
)

// recordPort counts raises and captures the subscribed handler so tests can
// drive the worker deterministically.
type recordPort struct {
	mu      sync.Mutex
	raises  int
	handler func()
}

func (p *recordPort) Raise() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raises++
	return nil
}

func (p *recordPort) Subscribe(h func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *recordPort) Close() error { return nil }

func (p *recordPort) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.raises
}

// newTestEngine returns an engine plus a host-side view of the same page,
// letting tests play the hypervisor: inject input, consume output, then
// step the engine with an advance.
func newTestEngine(t *testing.T) (*engine, *ring.Buffer, *recordPort) {
	t.Helper()
	page := ring.NewPage()
	rings, err := ring.Attach(page)
	if err != nil {
		t.Fatalf("attach driver view: %v", err)
	}
	host, err := ring.Attach(page)
	if err != nil {
		t.Fatalf("attach host view: %v", err)
	}
	p := &recordPort{}
	return newEngine(rings, p), host, p
}

func advance() message { return message{kind: msgAdvance} }

func writeMsg(payload string) (message, *oneshot[struct{}]) {
	done := newOneshot[struct{}]()
	return message{kind: msgWrite, payload: expandLF([]byte(payload)), wrote: done}, done
}

func readMsg(n int) (message, *oneshot[[]byte]) {
	done := newOneshot[[]byte]()
	return message{kind: msgRead, count: n, read: done}, done
}

func TestWriteExpandsAndRaisesOnce(t *testing.T) {
	e, host, p := newTestEngine(t)

	msg, done := writeMsg("abc\n")
	e.step(msg)

	if !done.fulfilled.Load() {
		t.Fatal("write not fulfilled with room available")
	}
	done.wait()

	out, ok := host.ReadOutput()
	if !ok || !bytes.Equal(out, []byte("abc\r\n")) {
		t.Errorf("output ring: got %q, want %q", out, "abc\r\n")
	}
	if got := p.count(); got != 1 {
		t.Errorf("raises: got %d, want 1", got)
	}
}

func TestReadFulfilledAcrossNotifications(t *testing.T) {
	e, host, _ := newTestEngine(t)

	msg, done := readMsg(4)
	e.step(msg)
	if done.fulfilled.Load() {
		t.Fatal("read fulfilled before any input arrived")
	}

	host.WriteInput([]byte("hi"))
	e.step(advance())
	if done.fulfilled.Load() {
		t.Fatal("read fulfilled after 2 of 4 bytes")
	}

	host.WriteInput([]byte("\r\n"))
	e.step(advance())
	if !done.fulfilled.Load() {
		t.Fatal("read not fulfilled after all 4 bytes arrived")
	}

	if got := done.wait(); !bytes.Equal(got, []byte("hi\n")) {
		t.Errorf("read result: got %q, want %q", got, "hi\n")
	}
}

func TestReadsFulfilledInOrderWithPartialHead(t *testing.T) {
	e, host, _ := newTestEngine(t)

	first, firstDone := readMsg(2)
	second, secondDone := readMsg(3)
	e.step(first)
	e.step(second)

	host.WriteInput([]byte("wxyz"))
	e.step(advance())

	if !firstDone.fulfilled.Load() {
		t.Fatal("first read not fulfilled with 4 bytes available")
	}
	if got := firstDone.wait(); !bytes.Equal(got, []byte("wx")) {
		t.Errorf("first read: got %q, want %q", got, "wx")
	}

	if secondDone.fulfilled.Load() {
		t.Fatal("second read fulfilled with only 2 of 3 bytes")
	}
	if len(e.reads) != 1 {
		t.Fatalf("pending reads: got %d, want 1", len(e.reads))
	}
	if head := e.reads[0]; head.remaining != 1 || !bytes.Equal(head.accumulated, []byte("yz")) {
		t.Errorf("head read state: remaining=%d accumulated=%q, want 1 and %q",
			head.remaining, head.accumulated, "yz")
	}
	if len(e.input) != 0 {
		t.Errorf("accumulation buffer: %d bytes left with a read pending", len(e.input))
	}

	host.WriteInput([]byte("!"))
	e.step(advance())
	if got := secondDone.wait(); !bytes.Equal(got, []byte("yz!")) {
		t.Errorf("second read: got %q, want %q", got, "yz!")
	}
}

func TestWriteBlocksOnFullRingAndResumes(t *testing.T) {
	e, host, p := newTestEngine(t)

	payload := make([]byte, ring.OutputCapacity+300)
	for i := range payload {
		payload[i] = byte(i)
	}
	done := newOneshot[struct{}]()
	e.step(message{kind: msgWrite, payload: payload, wrote: done})

	if done.fulfilled.Load() {
		t.Fatal("oversized write fulfilled before ring was drained")
	}
	if got := p.count(); got != 1 {
		t.Errorf("raises after filling ring: got %d, want 1", got)
	}

	// No room freed: repeated wake-ups make no progress and raise nothing.
	e.step(advance())
	e.step(advance())
	if got := p.count(); got != 1 {
		t.Errorf("raises after idle wake-ups: got %d, want 1", got)
	}

	first, ok := host.ReadOutput()
	if !ok || len(first) != ring.OutputCapacity {
		t.Fatalf("first drain: got %d bytes, want %d", len(first), ring.OutputCapacity)
	}

	e.step(advance())
	if !done.fulfilled.Load() {
		t.Fatal("write not fulfilled after room was freed")
	}
	done.wait()

	rest, ok := host.ReadOutput()
	if !ok {
		t.Fatal("second drain: no data")
	}
	if got := append(first, rest...); !bytes.Equal(got, payload) {
		t.Error("drained output does not equal the submitted payload")
	}
}

func TestWritesStayOrderedAcrossFullRing(t *testing.T) {
	e, host, _ := newTestEngine(t)

	big := make([]byte, ring.OutputCapacity+50)
	for i := range big {
		big[i] = byte('A' + i%26)
	}
	bigDone := newOneshot[struct{}]()
	e.step(message{kind: msgWrite, payload: big, wrote: bigDone})

	// The second write must not overtake the blocked head.
	tail, tailDone := writeMsg("tail")
	e.step(tail)
	if tailDone.fulfilled.Load() {
		t.Fatal("second write fulfilled while head write was blocked")
	}

	var drained []byte
	for i := 0; i < 4; i++ {
		if data, ok := host.ReadOutput(); ok {
			drained = append(drained, data...)
		}
		e.step(advance())
	}
	if data, ok := host.ReadOutput(); ok {
		drained = append(drained, data...)
	}

	bigDone.wait()
	tailDone.wait()

	want := append(append([]byte(nil), big...), []byte("tail")...)
	if !bytes.Equal(drained, want) {
		t.Errorf("drained %d bytes, want %d; ordering or content mismatch", len(drained), len(want))
	}
}

func TestEmptyRequestsCompleteImmediately(t *testing.T) {
	e, _, p := newTestEngine(t)

	wmsg, wdone := writeMsg("")
	e.step(wmsg)
	wdone.wait()

	rmsg, rdone := readMsg(0)
	e.step(rmsg)
	if got := rdone.wait(); len(got) != 0 {
		t.Errorf("zero-length read: got %q, want empty", got)
	}

	if got := p.count(); got != 0 {
		t.Errorf("raises for empty requests: got %d, want 0", got)
	}
}

func TestInputArrivingBeforeReadIsHeld(t *testing.T) {
	e, host, _ := newTestEngine(t)

	host.WriteInput([]byte("early"))
	e.step(advance())
	if !bytes.Equal(e.input, []byte("early")) {
		t.Fatalf("accumulation buffer: got %q, want %q", e.input, "early")
	}

	msg, done := readMsg(5)
	e.step(msg)
	if got := done.wait(); !bytes.Equal(got, []byte("early")) {
		t.Errorf("read of held input: got %q, want %q", got, "early")
	}
}

func TestReadChunkingIsInvisible(t *testing.T) {
	e, host, _ := newTestEngine(t)

	first, firstDone := readMsg(3)
	second, secondDone := readMsg(5)
	e.step(first)
	e.step(second)

	// Same total stream, awkward chunk boundaries.
	for _, chunk := range []string{"a", "bcde", "fgh"} {
		host.WriteInput([]byte(chunk))
		e.step(advance())
	}

	if got := firstDone.wait(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("first read: got %q, want %q", got, "abc")
	}
	if got := secondDone.wait(); !bytes.Equal(got, []byte("defgh")) {
		t.Errorf("second read: got %q, want %q", got, "defgh")
	}
}
