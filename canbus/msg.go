package canbus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxStandardID is the largest 11-bit CAN identifier.
	MaxStandardID = 0x7FF
	// MaxExtendedID is the largest 29-bit CAN identifier.
	MaxExtendedID = 0x1FFFFFFF
	// MaxDataLen is the maximum payload length of a classic CAN frame.
	MaxDataLen = 8
)

// errors shared across all transport backends
var (
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrUnsupported       = errors.New("operation not supported on this backend")
	ErrTimeout           = errors.New("timeout")
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrInvalidID         = errors.New("invalid CAN id")
)

// CanID is an 11-bit or 29-bit CAN identifier.
type CanID struct {
	raw      uint32
	extended bool
}

// StandardID builds an 11-bit identifier.
func StandardID(id uint32) (CanID, error) {
	if id > MaxStandardID {
		return CanID{}, fmt.Errorf("%w: 0x%X exceeds 11 bits", ErrInvalidID, id)
	}
	return CanID{raw: id}, nil
}

// ExtendedID builds a 29-bit identifier.
func ExtendedID(id uint32) (CanID, error) {
	if id > MaxExtendedID {
		return CanID{}, fmt.Errorf("%w: 0x%X exceeds 29 bits", ErrInvalidID, id)
	}
	return CanID{raw: id, extended: true}, nil
}

func (id CanID) Raw() uint32    { return id.raw }
func (id CanID) Extended() bool { return id.extended }

func (id CanID) String() string {
	if id.extended {
		return fmt.Sprintf("0x%08X", id.raw)
	}
	return fmt.Sprintf("0x%03X", id.raw)
}

// ParseID accepts a decimal or 0x-prefixed hex identifier. Magnitudes up to
// 0x7FF become standard ids, anything larger up to 29 bits becomes extended.
func ParseID(s string) (CanID, error) {
	t := strings.TrimSpace(s)
	var (
		val uint64
		err error
	)
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		val, err = strconv.ParseUint(t[2:], 16, 32)
	} else {
		val, err = strconv.ParseUint(t, 10, 32)
	}
	if err != nil {
		return CanID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if val <= MaxStandardID {
		return StandardID(uint32(val))
	}
	return ExtendedID(uint32(val))
}

// CanFrame is a classic CAN data frame. Bytes beyond Len are zero.
// A zero Timestamp means the frame has not been stamped by a reader.
type CanFrame struct {
	ID        CanID
	Len       uint8
	Data      [MaxDataLen]byte
	RTR       bool
	Timestamp time.Time
}

// NewFrame copies data into a frame, rejecting payloads over 8 bytes.
func NewFrame(id CanID, data []byte) (CanFrame, error) {
	if len(data) > MaxDataLen {
		return CanFrame{}, fmt.Errorf("%w: payload %d bytes", ErrInvalidFrame, len(data))
	}
	f := CanFrame{ID: id, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f, nil
}

// Payload returns the live portion of the data array.
func (f *CanFrame) Payload() []byte {
	return f.Data[:f.Len]
}

// BusInfo describes a discoverable interface. Names are backend-local.
type BusInfo struct {
	Name   string
	Driver string
}

// CanFilter is a hardware acceptance filter. Backends may reject it
// with ErrUnsupported.
type CanFilter struct {
	ID   CanID
	Mask uint32
}

// ParseHexBytes converts a list of hex byte tokens ("DE", "0xad") into bytes.
func ParseHexBytes(items []string) ([]byte, error) {
	out := make([]byte, 0, len(items))
	for _, s := range items {
		t := strings.TrimSpace(s)
		t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
		b, err := strconv.ParseUint(t, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q: %w", s, err)
		}
		out = append(out, byte(b))
	}
	return out, nil
}

// ParseHexCompact converts a compact hex string ("DEADBEEF") into bytes.
func ParseHexCompact(s string) ([]byte, error) {
	t := strings.TrimSpace(s)
	if len(t)%2 != 0 {
		return nil, fmt.Errorf("odd hex length %d", len(t))
	}
	out := make([]byte, 0, len(t)/2)
	for i := 0; i < len(t); i += 2 {
		b, err := strconv.ParseUint(t[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex at %d: %w", i, err)
		}
		out = append(out, byte(b))
	}
	return out, nil
}
