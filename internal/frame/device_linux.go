//go:build linux

package frame

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// DeviceMapper maps frames through a privileged device node, the usual
// vehicle for foreign-page access on Linux hosts.
type DeviceMapper struct {
	f *os.File
}

// OpenDevice opens the mapping device node, e.g. the hypervisor's
// privileged command device.
func OpenDevice(path string) (*DeviceMapper, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("frame: open %s: %w", path, err)
	}
	return &DeviceMapper{f: f}, nil
}

func (m *DeviceMapper) Map(frame uint64) ([]byte, error) {
	page, err := unix.Mmap(
		int(m.f.Fd()),
		int64(frame)*pageSize,
		pageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("frame: mmap frame %#x: %w (%w)", frame, err, ErrMapFailed)
	}
	return page, nil
}

// RequestMapping faults the frame through the device so a subsequent Map
// can succeed. Reading one byte at the frame's offset forces the kernel
// driver to materialize the backing page.
func (m *DeviceMapper) RequestMapping(frame uint64) error {
	var probe [1]byte
	if _, err := unix.Pread(int(m.f.Fd()), probe[:], int64(frame)*pageSize); err != nil {
		return fmt.Errorf("frame: request mapping for frame %#x: %w", frame, err)
	}
	return nil
}

// Unmap releases a view previously returned by Map.
func (m *DeviceMapper) Unmap(page []byte) error {
	return unix.Munmap(page)
}

func (m *DeviceMapper) Close() error {
	return m.f.Close()
}

var _ Mapper = (*DeviceMapper)(nil)
