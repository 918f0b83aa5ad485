package safety

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watchdog is a liveness probe. Check is called serially by the manager at
// the caller's cadence; implementations track their own failure streaks.
type Watchdog interface {
	Name() string
	Timeout() time.Duration
	Check() (WatchdogStatus, error)
	Reset()
}

// CameraWatchdog fails when no frame arrived within the timeout or the
// rolling one-second FPS drops below the minimum.
type CameraWatchdog struct {
	name        string
	timeout     time.Duration
	minFPS      float64
	lastFrame   time.Time
	windowStart time.Time
	windowCount int
	fps         float64
	failures    uint32
}

func NewCameraWatchdog(name string, timeout time.Duration, minFPS float64) *CameraWatchdog {
	return &CameraWatchdog{name: name, timeout: timeout, minFPS: minFPS}
}

// RecordFrame notes one camera frame. The FPS sample closes when the
// one-second window rolls over.
func (w *CameraWatchdog) RecordFrame() {
	now := time.Now()
	w.lastFrame = now
	if w.windowStart.IsZero() {
		w.windowStart = now
	}
	if elapsed := now.Sub(w.windowStart); elapsed >= time.Second {
		w.fps = float64(w.windowCount) / elapsed.Seconds()
		w.windowStart = now
		w.windowCount = 0
	}
	w.windowCount++
}

func (w *CameraWatchdog) Name() string           { return w.name }
func (w *CameraWatchdog) Timeout() time.Duration { return w.timeout }

func (w *CameraWatchdog) Check() (WatchdogStatus, error) {
	now := time.Now()
	var errMsg string
	switch {
	case w.lastFrame.IsZero():
		errMsg = "no camera frames received"
	case now.Sub(w.lastFrame) > w.timeout:
		errMsg = fmt.Sprintf("last frame %s ago", now.Sub(w.lastFrame).Round(time.Millisecond))
	case w.fps > 0 && w.fps < w.minFPS:
		errMsg = fmt.Sprintf("fps %.1f below minimum %.1f", w.fps, w.minFPS)
	}

	healthy := errMsg == ""
	if healthy {
		w.failures = 0
	} else {
		w.failures++
	}
	return WatchdogStatus{
		Name:                w.name,
		Healthy:             healthy,
		LastCheck:           now,
		LastError:           errMsg,
		Timeout:             w.timeout,
		ConsecutiveFailures: w.failures,
	}, nil
}

func (w *CameraWatchdog) Reset() {
	w.lastFrame = time.Time{}
	w.windowStart = time.Time{}
	w.windowCount = 0
	w.fps = 0
	w.failures = 0
}

// CanWatchdog fails when no bus message was recorded within the timeout.
type CanWatchdog struct {
	name     string
	timeout  time.Duration
	lastMsg  time.Time
	failures uint32
}

func NewCanWatchdog(name string, timeout time.Duration) *CanWatchdog {
	return &CanWatchdog{name: name, timeout: timeout}
}

// RecordMessage notes bus activity.
func (w *CanWatchdog) RecordMessage() { w.lastMsg = time.Now() }

func (w *CanWatchdog) Name() string           { return w.name }
func (w *CanWatchdog) Timeout() time.Duration { return w.timeout }

func (w *CanWatchdog) Check() (WatchdogStatus, error) {
	now := time.Now()
	var errMsg string
	switch {
	case w.lastMsg.IsZero():
		errMsg = "no CAN messages received"
	case now.Sub(w.lastMsg) > w.timeout:
		errMsg = fmt.Sprintf("last message %s ago", now.Sub(w.lastMsg).Round(time.Millisecond))
	}

	healthy := errMsg == ""
	if healthy {
		w.failures = 0
	} else {
		w.failures++
	}
	return WatchdogStatus{
		Name:                w.name,
		Healthy:             healthy,
		LastCheck:           now,
		LastError:           errMsg,
		Timeout:             w.timeout,
		ConsecutiveFailures: w.failures,
	}, nil
}

func (w *CanWatchdog) Reset() {
	w.lastMsg = time.Time{}
	w.failures = 0
}

// EStopFlag is the shared pressed state between the physical trigger path
// and its watchdog.
type EStopFlag struct {
	mu      sync.Mutex
	pressed bool
}

func (f *EStopFlag) Press() {
	f.mu.Lock()
	f.pressed = true
	f.mu.Unlock()
}

func (f *EStopFlag) Clear() {
	f.mu.Lock()
	f.pressed = false
	f.mu.Unlock()
}

func (f *EStopFlag) Pressed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressed
}

// EStopWatchdog fails while the shared flag is pressed. The 100ms timeout
// reflects the aggressive polling cadence expected of the caller.
type EStopWatchdog struct {
	name     string
	flag     *EStopFlag
	failures uint32
}

func NewEStopWatchdog(name string, flag *EStopFlag) *EStopWatchdog {
	return &EStopWatchdog{name: name, flag: flag}
}

func (w *EStopWatchdog) Name() string           { return w.name }
func (w *EStopWatchdog) Timeout() time.Duration { return 100 * time.Millisecond }

func (w *EStopWatchdog) Check() (WatchdogStatus, error) {
	now := time.Now()
	pressed := w.flag.Pressed()
	var errMsg string
	if pressed {
		errMsg = "emergency stop pressed"
		w.failures++
	} else {
		w.failures = 0
	}
	return WatchdogStatus{
		Name:                w.name,
		Healthy:             !pressed,
		LastCheck:           now,
		LastError:           errMsg,
		Timeout:             w.Timeout(),
		ConsecutiveFailures: w.failures,
	}, nil
}

// Reset clears the shared flag.
func (w *EStopWatchdog) Reset() {
	w.flag.Clear()
	w.failures = 0
}

// EventCallback receives edge events after each check batch. It must be
// non-blocking and must not mutate the manager.
type EventCallback func(SafetyEvent)

// Manager iterates a fixed set of watchdogs. Registration rejects
// duplicate names; the callback is set once at construction.
type Manager struct {
	watchdogs []Watchdog
	names     map[string]struct{}
	callback  EventCallback
	logger    *zap.Logger
}

func NewManager(callback EventCallback, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{names: make(map[string]struct{}), callback: callback, logger: logger}
}

// Register adds a watchdog, rejecting duplicate names.
func (m *Manager) Register(w Watchdog) error {
	if _, dup := m.names[w.Name()]; dup {
		return fmt.Errorf("watchdog %q already registered", w.Name())
	}
	m.names[w.Name()] = struct{}{}
	m.watchdogs = append(m.watchdogs, w)
	return nil
}

// CheckAll runs every watchdog once. A status entering its first
// consecutive failure emits exactly one Critical WatchdogFailure event;
// sustained failures stay silent until the next healthy-to-failed edge.
// Events are batched and the callback runs after the full pass.
func (m *Manager) CheckAll() []WatchdogStatus {
	statuses := make([]WatchdogStatus, 0, len(m.watchdogs))
	var events []SafetyEvent

	for _, w := range m.watchdogs {
		status, err := w.Check()
		if err != nil {
			m.logger.Error("watchdog check failed",
				zap.String("watchdog", w.Name()), zap.Error(err))
			continue
		}
		statuses = append(statuses, status)

		if !status.Healthy && status.ConsecutiveFailures == 1 {
			events = append(events, SafetyEvent{
				Timestamp: time.Now().UTC(),
				EventType: EventWatchdogFailure,
				Message:   fmt.Sprintf("watchdog %s failed: %s", status.Name, status.LastError),
				Severity:  SeverityCritical,
				Context:   map[string]string{"watchdog": status.Name},
			})
		}
	}

	if m.callback != nil {
		for _, ev := range events {
			m.callback(ev)
		}
	}
	return statuses
}

// ResetAll resets every watchdog.
func (m *Manager) ResetAll() {
	for _, w := range m.watchdogs {
		w.Reset()
	}
}

// Watchdogs returns the registered probes in registration order.
func (m *Manager) Watchdogs() []Watchdog {
	return m.watchdogs
}
