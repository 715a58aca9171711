// Package frame obtains the shared console page from a machine frame
// number. A frame that has never been mapped into the guest cannot always
// be dereferenced directly; Mapper therefore exposes an explicit mapping
// request that callers use as a one-shot fallback before retrying Map.
package frame

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMapFailed reports that a frame could not be viewed as memory. Callers
// respond by issuing RequestMapping once and retrying.
var ErrMapFailed = errors.New("frame: mapping failed")

// Mapper turns a machine frame number into a byte view of the frame.
type Mapper interface {
	// Map returns a live view of the frame's memory.
	Map(frame uint64) ([]byte, error)

	// RequestMapping asks the provider to establish a mapping for a frame
	// whose direct Map failed.
	RequestMapping(frame uint64) error
}

// SliceMapper serves frames out of registered in-memory pages. Tests and the
// loopback harness use it in place of a hypervisor mapping; a page can be
// registered deferred to exercise the explicit-mapping fallback.
type SliceMapper struct {
	mu       sync.Mutex
	pages    map[uint64][]byte
	deferred map[uint64]bool
}

func NewSliceMapper() *SliceMapper {
	return &SliceMapper{
		pages:    make(map[uint64][]byte),
		deferred: make(map[uint64]bool),
	}
}

// Register makes a page available under the given frame number. A deferred
// page fails Map until RequestMapping has been called for it.
func (m *SliceMapper) Register(frame uint64, page []byte, deferred bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[frame] = page
	if deferred {
		m.deferred[frame] = true
	}
}

func (m *SliceMapper) Map(frame uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pages[frame]
	if !ok {
		return nil, fmt.Errorf("frame %#x not registered: %w", frame, ErrMapFailed)
	}
	if m.deferred[frame] {
		return nil, fmt.Errorf("frame %#x not yet mapped: %w", frame, ErrMapFailed)
	}
	return page, nil
}

func (m *SliceMapper) RequestMapping(frame uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[frame]; !ok {
		return fmt.Errorf("frame %#x not registered: %w", frame, ErrMapFailed)
	}
	delete(m.deferred, frame)
	return nil
}

var _ Mapper = (*SliceMapper)(nil)
