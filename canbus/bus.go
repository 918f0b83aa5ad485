package canbus

import (
	"fmt"
	"time"
)

// Blocking means Recv should wait indefinitely for a frame.
const Blocking time.Duration = -1

// Bus is the minimal blocking interface every CAN backend implements.
// A bus handle owns its underlying resource; dropping it via Close releases
// the OS handle. Within a single handle sends are FIFO and Recv returns
// frames in arrival order.
type Bus interface {
	// SetFilters installs hardware acceptance filters where supported.
	SetFilters(filters []CanFilter) error
	// Send transmits one frame, blocking until the write completes.
	Send(frame CanFrame) error
	// Recv waits up to timeout for one frame. Blocking waits forever;
	// 0 polls and returns ErrTimeout when nothing is pending.
	Recv(timeout time.Duration) (CanFrame, error)
	Close() error
}

// Backend selects a transport implementation. The tag is consumed at
// construction only; everything downstream works against Bus.
type Backend string

const (
	BackendMock  Backend = "mock"
	BackendSlcan Backend = "slcan"
)

// Open creates a bus handle for the named interface on the given backend.
func Open(backend Backend, name string) (Bus, error) {
	switch backend {
	case BackendMock:
		return OpenMock(name)
	case BackendSlcan:
		return OpenSlcan(name, Bitrate500k)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// List enumerates interfaces available on the given backend.
func List(backend Backend) ([]BusInfo, error) {
	switch backend {
	case BackendMock:
		return ListMock()
	case BackendSlcan:
		return ListSlcan()
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
