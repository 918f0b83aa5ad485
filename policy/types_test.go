package policy

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestActionType(t *testing.T) {
	Convey("Action types have stable names", t, func() {
		So(JointPositions.String(), ShouldEqual, "joint_positions")
		So(EndEffectorDelta.String(), ShouldEqual, "end_effector_delta")
		So(Gripper.String(), ShouldEqual, "gripper")
		So(ActionType(99).String(), ShouldEqual, "unknown")
	})
}

func TestNewAction(t *testing.T) {
	Convey("NewAction stamps the wall clock", t, func() {
		a := NewAction(JointPositions, []float64{0, 1}, 0.9)
		So(a.Type, ShouldEqual, JointPositions)
		So(a.Values, ShouldResemble, []float64{0, 1})
		So(a.Confidence, ShouldEqual, 0.9)
		So(a.Timestamp, ShouldBeGreaterThan, 0)
	})
}

func TestMockPolicy(t *testing.T) {
	Convey("Given a mock policy", t, func() {
		action := NewAction(EndEffectorDelta, []float64{0, 0, 0.1, 0, 0, 0}, 0.8)
		mock := NewMockPolicy(action)

		Convey("Predict returns the canned result and counts calls", func() {
			res, err := mock.Predict(context.Background(), Observation{})
			So(err, ShouldBeNil)
			So(len(res.Actions), ShouldEqual, 1)
			So(res.Actions[0].Type, ShouldEqual, EndEffectorDelta)
			So(res.Metadata["source"], ShouldEqual, "mock")
			So(mock.Calls, ShouldEqual, 1)
		})

		Convey("A configured error is surfaced", func() {
			mock.Err = errors.New("inference backend down")
			_, err := mock.Predict(context.Background(), Observation{})
			So(err, ShouldNotBeNil)
		})
	})
}
