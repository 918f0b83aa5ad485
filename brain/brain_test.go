package brain

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/canbus"
	"github.com/sr-robotics/srcore/devreg"
	"github.com/sr-robotics/srcore/intent"
	"github.com/sr-robotics/srcore/policy"
	"github.com/sr-robotics/srcore/safety"
)

func armDescriptor() *devreg.DeviceDescriptor {
	posDeg := devreg.Range{-180, 180}
	vel := 180.0
	torque := 10.0
	return &devreg.DeviceDescriptor{
		ID:       "arm",
		Bus:      "can0",
		Protocol: "tmotor_mit",
		Joints: []devreg.Joint{
			{
				Name:   "shoulder",
				Limits: devreg.JointLimits{PosDeg: &posDeg, VelDps: &vel, TorqueNm: &torque},
				Map: devreg.JointMap{
					Frames: []devreg.CanFrameFmt{{ID: "0x141", Fmt: "tmotor_cmd"}},
				},
			},
			{
				Name: "elbow",
				Map: devreg.JointMap{
					Frames: []devreg.CanFrameFmt{{ID: "0x142", Fmt: "tmotor_cmd"}},
				},
			},
		},
	}
}

func testBrain(t *testing.T, bus canbus.Bus) *Brain {
	t.Helper()
	registry := devreg.NewRegistry()
	registry.Insert(armDescriptor())
	engine, err := safety.DefaultEngine(zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	parser, err := intent.NewParser(intent.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Config{
		Bus:      bus,
		Registry: registry,
		DeviceID: "arm",
		Engine:   engine,
		Parser:   parser,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleUtterance(t *testing.T) {
	Convey("Given a brain over a mock bus", t, func() {
		bus, _ := canbus.OpenMock("mock0")
		b := testBrain(t, bus)
		obs := policy.Observation{
			JointPositions: []float64{0, 0, 0, 0, 0, 0},
			EEPose:         []float64{0.3, 0, 0.5, 0, 0, 0},
		}

		Convey("A stop command sends one frame per joint", func() {
			out, err := b.HandleUtterance(context.Background(), "stop", obs)
			So(err, ShouldBeNil)
			So(out.Action.Type, ShouldEqual, policy.JointVelocities)
			So(out.Gate.Status, ShouldEqual, safety.GateSafe)
			So(out.FramesSent, ShouldEqual, 2)

			sent := bus.Sent()
			So(sent, ShouldHaveLength, 2)
			So(sent[0].ID.Raw(), ShouldEqual, uint32(0x141))
			So(sent[1].ID.Raw(), ShouldEqual, uint32(0x142))
		})

		Convey("A safe Cartesian move passes the gate but needs IK downstream", func() {
			out, err := b.HandleUtterance(context.Background(), "raise arm 15 cm", obs)
			So(err, ShouldBeNil)
			So(out.Action.Type, ShouldEqual, policy.EndEffectorDelta)
			So(out.Gate.Status, ShouldEqual, safety.GateSafe)
			So(out.FramesSent, ShouldEqual, 0)
			So(bus.Sent(), ShouldBeEmpty)
		})

		Convey("A move beyond the workspace is blocked before the bus", func() {
			out, err := b.HandleUtterance(context.Background(), "raise the arm by 200 cm", obs)
			So(err, ShouldWrap, ErrNotSafe)
			So(out.Gate.Status, ShouldEqual, safety.GateViolation)
			So(out.Gate.Message, ShouldContainSubstring, "workspace_bounds")
			So(bus.Sent(), ShouldBeEmpty)
		})

		Convey("A home command is held for confirmation", func() {
			out, err := b.HandleUtterance(context.Background(), "go to home position", obs)
			So(err, ShouldBeNil)
			So(out.Parsed.Action.RequiresConfirmation, ShouldBeTrue)
			So(out.FramesSent, ShouldEqual, 0)
			So(bus.Sent(), ShouldBeEmpty)
		})

		Convey("Gibberish surfaces the parse error", func() {
			_, err := b.HandleUtterance(context.Background(), "purple monkey dishwasher", obs)
			So(err, ShouldWrap, intent.ErrNoIntent)
		})
	})
}

func TestDispatch(t *testing.T) {
	Convey("Given a brain over a mock bus", t, func() {
		bus, _ := canbus.OpenMock("mock0")
		b := testBrain(t, bus)

		Convey("Joint positions encode in joint list order", func() {
			action := policy.NewAction(policy.JointPositions, []float64{0.5, -0.5}, 1.0)
			sent, err := b.Dispatch(action)
			So(err, ShouldBeNil)
			So(sent, ShouldEqual, 2)
			So(bus.Sent()[0].ID.Raw(), ShouldEqual, uint32(0x141))
		})

		Convey("Fewer values than joints commands only the covered joints", func() {
			action := policy.NewAction(policy.JointVelocities, []float64{0.1}, 1.0)
			sent, err := b.Dispatch(action)
			So(err, ShouldBeNil)
			So(sent, ShouldEqual, 1)
		})

		Convey("Gripper actions produce no frames", func() {
			action := policy.NewAction(policy.Gripper, []float64{1}, 1.0)
			sent, err := b.Dispatch(action)
			So(err, ShouldBeNil)
			So(sent, ShouldEqual, 0)
		})
	})
}

func TestPumpTelemetry(t *testing.T) {
	Convey("Given a brain with a CAN watchdog", t, func() {
		bus, _ := canbus.OpenMock("mock0")
		registry := devreg.NewRegistry()
		registry.Insert(armDescriptor())
		engine, err := safety.DefaultEngine(zap.NewNop())
		So(err, ShouldBeNil)
		parser, err := intent.NewParser(intent.DefaultConfig())
		So(err, ShouldBeNil)
		wd := safety.NewCanWatchdog("can", 500*time.Millisecond)

		b, err := New(Config{
			Bus:      bus,
			Registry: registry,
			DeviceID: "arm",
			Engine:   engine,
			Parser:   parser,
			CanWD:    wd,
		})
		So(err, ShouldBeNil)

		Convey("A received frame feeds the watchdog", func() {
			rec, err := b.PumpTelemetry(10 * time.Millisecond)
			So(err, ShouldBeNil)
			// The mock heartbeat id is not in the telemetry map.
			So(rec, ShouldBeNil)

			status, err := wd.Check()
			So(err, ShouldBeNil)
			So(status.Healthy, ShouldBeTrue)
		})
	})
}

func TestNewValidation(t *testing.T) {
	Convey("New refuses incomplete configs", t, func() {
		bus, _ := canbus.OpenMock("mock0")
		engine, err := safety.DefaultEngine(zap.NewNop())
		So(err, ShouldBeNil)
		parser, err := intent.NewParser(intent.DefaultConfig())
		So(err, ShouldBeNil)

		Convey("Missing collaborators", func() {
			_, err := New(Config{Bus: bus})
			So(err, ShouldNotBeNil)
		})

		Convey("Unknown device id", func() {
			_, err := New(Config{
				Bus:      bus,
				Registry: devreg.NewRegistry(),
				DeviceID: "ghost",
				Engine:   engine,
				Parser:   parser,
			})
			So(err, ShouldNotBeNil)
		})
	})
}
