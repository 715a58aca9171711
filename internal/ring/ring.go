// Package ring implements the shared-page console ring protocol: one page
// holding an input ring, an output ring and four free-running 32-bit
// counters. The driver side consumes input and produces output; the peer
// (hypervisor) side is the mirror image. Counters index into their buffer
// modulo its capacity and wrap naturally at 2^32; availability and room are
// computed with unsigned subtraction, which stays correct across the wrap.
package ring

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	// InputCapacity and OutputCapacity are fixed by the shared-page ABI.
	InputCapacity  = 1024
	OutputCapacity = 2048

	// PageSize is the size of the shared page the rings live in.
	PageSize = 4096

	offInput   = 0
	offOutput  = offInput + InputCapacity
	offInCons  = offOutput + OutputCapacity
	offInProd  = offInCons + 4
	offOutCons = offInProd + 4
	offOutProd = offOutCons + 4

	layoutSize = offOutProd + 4
)

// Buffer is a view over a shared console page. It holds no state of its own;
// everything lives in the page, which the remote side mutates concurrently.
// The counter words are therefore accessed with single-word atomics.
type Buffer struct {
	page []byte
}

// Attach lays the ring view over a mapped page. The page must be at least
// large enough for the ABI layout and 4-byte aligned (mapped pages always
// are; for in-memory pages use NewPage).
func Attach(page []byte) (*Buffer, error) {
	if len(page) < layoutSize {
		return nil, fmt.Errorf("ring: page too small: %d bytes, need %d", len(page), layoutSize)
	}
	if uintptr(unsafe.Pointer(&page[0]))%4 != 0 {
		return nil, fmt.Errorf("ring: page is not 4-byte aligned")
	}
	return &Buffer{page: page}, nil
}

// NewPage allocates a page-sized, word-aligned buffer suitable for Attach.
// Used by tests and the loopback harness in place of a hypervisor mapping.
func NewPage() []byte {
	words := make([]uint32, PageSize/4)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), PageSize)
}

func (b *Buffer) counter(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&b.page[off]))
}

func (b *Buffer) load(off int) uint32     { return atomic.LoadUint32(b.counter(off)) }
func (b *Buffer) store(off int, v uint32) { atomic.StoreUint32(b.counter(off), v) }

// PullInput reads every byte currently available on the input ring,
// advancing the consumer counter by exactly that many positions. It never
// blocks; an empty ring returns (nil, false).
func (b *Buffer) PullInput() ([]byte, bool) {
	cons := b.load(offInCons)
	prod := b.load(offInProd)
	if prod-cons > InputCapacity {
		panic(fmt.Sprintf("ring: input ring overfull: produced=%d consumed=%d", prod, cons))
	}

	var data []byte
	for cons != prod {
		data = append(data, b.page[offInput+int(cons%InputCapacity)])
		cons++
	}
	if data == nil {
		return nil, false
	}
	b.store(offInCons, cons)
	return data, true
}

// PushOutput writes one byte at the producer position of the output ring if
// there is room, advancing the producer counter. A full ring returns false
// without mutating anything.
func (b *Buffer) PushOutput(c byte) bool {
	cons := b.load(offOutCons)
	prod := b.load(offOutProd)
	if prod-cons >= OutputCapacity {
		return false
	}
	b.page[offOutput+int(prod%OutputCapacity)] = c
	b.store(offOutProd, prod+1)
	return true
}

// Peer-side mirror accessors. These are what the other end of the page uses:
// the hypervisor harness in tests and the loopback peer.

// ReadOutput drains the output ring as its consumer.
func (b *Buffer) ReadOutput() ([]byte, bool) {
	cons := b.load(offOutCons)
	prod := b.load(offOutProd)
	if prod-cons > OutputCapacity {
		panic(fmt.Sprintf("ring: output ring overfull: produced=%d consumed=%d", prod, cons))
	}

	var data []byte
	for cons != prod {
		data = append(data, b.page[offOutput+int(cons%OutputCapacity)])
		cons++
	}
	if data == nil {
		return nil, false
	}
	b.store(offOutCons, cons)
	return data, true
}

// WriteInput produces onto the input ring up to the room available and
// returns how many bytes were accepted.
func (b *Buffer) WriteInput(p []byte) int {
	cons := b.load(offInCons)
	prod := b.load(offInProd)

	n := 0
	for n < len(p) && prod-cons < InputCapacity {
		b.page[offInput+int(prod%InputCapacity)] = p[n]
		prod++
		n++
	}
	if n > 0 {
		b.store(offInProd, prod)
	}
	return n
}

// InputAvailable reports how many input bytes are waiting for the driver.
func (b *Buffer) InputAvailable() int {
	return int(b.load(offInProd) - b.load(offInCons))
}

// OutputRoom reports how many bytes the driver could still push.
func (b *Buffer) OutputRoom() int {
	return OutputCapacity - int(b.load(offOutProd)-b.load(offOutCons))
}

// SetCounters overwrites all four counters. Only meaningful before the rings
// are in use; tests use it to exercise counter wraparound.
func (b *Buffer) SetCounters(inCons, inProd, outCons, outProd uint32) {
	b.store(offInCons, inCons)
	b.store(offInProd, inProd)
	b.store(offOutCons, outCons)
	b.store(offOutProd, outProd)
}
