package srlog

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/canbus"
)

// Replay pushes every journal record back onto a bus. With realtime set,
// sends are paced by the recorded timestamp deltas; otherwise frames go
// out as fast as the bus accepts them. Records that fail to parse are
// logged and skipped so a damaged journal still replays its good frames.
// Returns the number of frames sent.
func Replay(r *Reader, bus canbus.Bus, realtime bool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		sent   int
		prevTS time.Time
	)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			if errors.Is(err, ErrBadRecord) {
				logger.Warn("skipping bad record", zap.Error(err))
				continue
			}
			return sent, fmt.Errorf("reading journal: %w", err)
		}

		frame, err := rec.Frame()
		if err != nil {
			logger.Warn("skipping bad record", zap.Error(err))
			continue
		}

		if realtime {
			ts, err := rec.Time()
			if err != nil {
				logger.Warn("skipping bad record", zap.Error(err))
				continue
			}
			if !prevTS.IsZero() {
				if delta := ts.Sub(prevTS); delta > 0 {
					time.Sleep(delta)
				}
			}
			prevTS = ts
		}

		if err := bus.Send(frame); err != nil {
			return sent, fmt.Errorf("sending frame %s: %w", frame.ID, err)
		}
		sent++
	}
}

// Capture drains the bus into the journal until n frames have been written.
// With n <= 0 capture runs until the first receive timeout. With n > 0
// timeouts are retried indefinitely, so on a silent bus the call only
// returns once the caller closes the bus (a closed port surfaces as a
// non-timeout receive error).
func Capture(bus canbus.Bus, w *Writer, n int, timeout time.Duration, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var captured int
	for n <= 0 || captured < n {
		frame, err := bus.Recv(timeout)
		if err != nil {
			if errors.Is(err, canbus.ErrTimeout) {
				logger.Debug("capture idle", zap.Int("frames", captured))
				if n <= 0 {
					break
				}
				continue
			}
			return captured, fmt.Errorf("receiving frame: %w", err)
		}
		if err := w.WriteFrame(frame); err != nil {
			return captured, err
		}
		captured++
	}
	return captured, w.Flush()
}
