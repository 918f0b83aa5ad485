package canbus

import (
	"fmt"
	"time"
)

// MockBus is an in-process bus for deterministic tests and offline replay.
// Every Recv yields a heartbeat frame so polling flows stay exercisable;
// Send accepts and counts everything.
type MockBus struct {
	name string
	sent []CanFrame
}

// OpenMock always succeeds; each instance is independent.
func OpenMock(name string) (*MockBus, error) {
	return &MockBus{name: name}, nil
}

// ListMock reports the single synthetic interface.
func ListMock() ([]BusInfo, error) {
	return []BusInfo{{Name: "mock0", Driver: "mock"}}, nil
}

func (m *MockBus) SetFilters(filters []CanFilter) error {
	return fmt.Errorf("%w: mock backend has no hardware filters", ErrUnsupported)
}

func (m *MockBus) Send(frame CanFrame) error {
	m.sent = append(m.sent, frame)
	return nil
}

// Recv produces an idle heartbeat (standard id 0x700, four zero bytes)
// stamped with the current wall clock.
func (m *MockBus) Recv(timeout time.Duration) (CanFrame, error) {
	id, err := StandardID(0x700)
	if err != nil {
		return CanFrame{}, err
	}
	f, err := NewFrame(id, []byte{0x00, 0x00, 0x00, 0x00})
	if err != nil {
		return CanFrame{}, err
	}
	f.Timestamp = time.Now().UTC()
	return f, nil
}

func (m *MockBus) Close() error { return nil }

// Sent exposes accepted frames for assertions in tests.
func (m *MockBus) Sent() []CanFrame { return m.sent }
