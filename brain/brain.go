// Package brain wires the command pipeline: utterance in, gated CAN
// frames out. The pipeline is single-threaded per robot; only telemetry
// and watchdog ticks run beside it.
package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/canbus"
	"github.com/sr-robotics/srcore/devreg"
	"github.com/sr-robotics/srcore/intent"
	"github.com/sr-robotics/srcore/policy"
	"github.com/sr-robotics/srcore/safety"
)

var ErrNotSafe = errors.New("action blocked by safety gate")

// Brain owns the command path for one robot.
type Brain struct {
	bus      canbus.Bus
	registry *devreg.Registry
	deviceID string
	engine   *safety.Engine
	parser   *intent.Parser
	refiner  *intent.Refiner
	canWD    *safety.CanWatchdog
	metrics  *devreg.MetricsHub
	audit    *safety.AuditLog
	logger   *zap.Logger
}

// Config collects the collaborators. Bus, Registry, DeviceID, Engine and
// Parser are required; the rest may be nil.
type Config struct {
	Bus      canbus.Bus
	Registry *devreg.Registry
	DeviceID string
	Engine   *safety.Engine
	Parser   *intent.Parser
	Refiner  *intent.Refiner
	CanWD    *safety.CanWatchdog
	Metrics  *devreg.MetricsHub
	Audit    *safety.AuditLog
	Logger   *zap.Logger
}

func New(cfg Config) (*Brain, error) {
	if cfg.Bus == nil || cfg.Registry == nil || cfg.Engine == nil || cfg.Parser == nil {
		return nil, errors.New("bus, registry, engine and parser are required")
	}
	if _, ok := cfg.Registry.Get(cfg.DeviceID); !ok {
		return nil, fmt.Errorf("device %q not in registry", cfg.DeviceID)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	refiner := cfg.Refiner
	if refiner == nil {
		refiner = intent.NewRefiner(nil, logger)
	}
	return &Brain{
		bus:      cfg.Bus,
		registry: cfg.Registry,
		deviceID: cfg.DeviceID,
		engine:   cfg.Engine,
		parser:   cfg.Parser,
		refiner:  refiner,
		canWD:    cfg.CanWD,
		metrics:  cfg.Metrics,
		audit:    cfg.Audit,
		logger:   logger,
	}, nil
}

// Outcome reports what one utterance produced.
type Outcome struct {
	Parsed     intent.ParseResult
	Action     policy.Action
	Gate       safety.GateResult
	FramesSent int
}

// HandleUtterance runs the full pipeline. Non-safe gate results return
// ErrNotSafe alongside the outcome so callers can render the reason;
// actions needing confirmation are returned undispatched.
func (b *Brain) HandleUtterance(ctx context.Context, text string, obs policy.Observation) (Outcome, error) {
	parsed, err := b.parser.Parse(text)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Parsed: parsed}

	action, err := intent.ToPolicyAction(parsed.Action)
	if err != nil {
		return out, err
	}
	action = b.refiner.Refine(ctx, action, obs)
	out.Action = action

	out.Gate = safety.CheckActionSafety(action, obs, b.engine)
	if out.Gate.Status != safety.GateSafe {
		b.recordGateEvent(out.Gate)
		return out, fmt.Errorf("%w: %s", ErrNotSafe, out.Gate.Message)
	}

	if parsed.Action.RequiresConfirmation {
		b.logger.Info("action held for confirmation",
			zap.String("kind", parsed.Action.Kind.String()))
		return out, nil
	}

	sent, err := b.Dispatch(action)
	out.FramesSent = sent
	return out, err
}

// Dispatch encodes a joint-space action against the device descriptor and
// sends the frames in joint list order. End-effector deltas need inverse
// kinematics downstream and produce no frames here.
func (b *Brain) Dispatch(action policy.Action) (int, error) {
	desc, ok := b.registry.Get(b.deviceID)
	if !ok {
		return 0, fmt.Errorf("device %q not in registry", b.deviceID)
	}

	var toCommand func(v float64) devreg.JointCommand
	switch action.Type {
	case policy.JointPositions:
		toCommand = func(v float64) devreg.JointCommand { return devreg.Pos(float32(v)) }
	case policy.JointVelocities:
		toCommand = func(v float64) devreg.JointCommand { return devreg.Vel(float32(v)) }
	case policy.JointTorques:
		toCommand = func(v float64) devreg.JointCommand { return devreg.Torque(float32(v)) }
	default:
		b.logger.Debug("action type has no joint-space dispatch",
			zap.String("type", action.Type.String()))
		return 0, nil
	}

	sent := 0
	for i, joint := range desc.Joints {
		if i >= len(action.Values) {
			break
		}
		frames, err := devreg.BuildFramesForJoint(desc, joint.Name, toCommand(action.Values[i]))
		if err != nil {
			return sent, fmt.Errorf("encoding joint %s: %w", joint.Name, err)
		}
		for _, f := range frames {
			if err := b.bus.Send(f); err != nil {
				return sent, fmt.Errorf("sending joint %s: %w", joint.Name, err)
			}
			sent++
			if b.metrics != nil {
				b.metrics.TxFrames.Inc()
			}
		}
	}
	return sent, nil
}

// PumpTelemetry receives one frame, feeds the CAN watchdog and metrics,
// and decodes it against the device descriptor. A timeout returns nil
// without error so poll loops stay simple.
func (b *Brain) PumpTelemetry(timeout time.Duration) (*devreg.TelemetryRecord, error) {
	frame, err := b.bus.Recv(timeout)
	if err != nil {
		if errors.Is(err, canbus.ErrTimeout) {
			return nil, nil
		}
		return nil, err
	}
	if b.canWD != nil {
		b.canWD.RecordMessage()
	}
	if b.metrics != nil {
		b.metrics.RxFrames.Inc()
	}

	desc, ok := b.registry.Get(b.deviceID)
	if !ok {
		return nil, nil
	}
	return devreg.DecodeByID(desc, frame.ID, frame.Payload(), frame.Timestamp), nil
}

func (b *Brain) recordGateEvent(gate safety.GateResult) {
	severity := safety.SeverityWarning
	eventType := safety.EventViolationDetected
	if gate.Status == safety.GateViolation {
		severity = safety.SeverityCritical
	}
	ev := safety.SafetyEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Message:   gate.Message,
		Severity:  severity,
		Context:   map[string]string{"status": gate.Status.String()},
	}
	b.logger.Warn("action blocked",
		zap.String("status", gate.Status.String()),
		zap.String("reason", gate.Message))
	if b.audit != nil {
		if err := b.audit.Append(ev); err != nil {
			b.logger.Error("audit append failed", zap.Error(err))
		}
	}
}
