// Package pvcons is a paravirtualized console driver: blocking read and
// write on a guest console backed by a page of memory shared with a
// hypervisor and an asynchronous notification port. The package re-exports
// the public surface of the internal packages.
package pvcons

import (
	"github.com/protoben/pvcons/internal/console"
	"github.com/protoben/pvcons/internal/frame"
	"github.com/protoben/pvcons/internal/port"
)

// Console is the blocking console handle. Safe for concurrent use; requests
// of the same kind complete in submission order.
type Console = console.Console

// Port is the notification channel shared with the hypervisor.
type Port = port.Port

// FrameMapper turns a machine frame number into a byte view of the frame.
type FrameMapper = frame.Mapper

// ErrMapFailed reports that a frame could not be viewed as memory.
var ErrMapFailed = frame.ErrMapFailed

// Init constructs a console from a caller-obtained machine frame and port:
// it maps the shared page (falling back to one explicit mapping request),
// starts the worker and registers the notification handler.
func Init(frameNo uint64, notify Port, mapper FrameMapper) (*Console, error) {
	return console.Init(frameNo, notify, mapper)
}
