package intent

import (
	"fmt"

	"github.com/sr-robotics/srcore/policy"
)

// HomePose is the joint configuration the home action targets.
var HomePose = []float64{0, -1.57, 1.57, 0, 0, 0}

const armDOF = 6

// ToPolicyAction lowers a parsed robot action into the executor currency.
// Motions become end-effector deltas in meters; joint targets become a
// one-hot joint position vector in radians.
func ToPolicyAction(action RobotAction) (policy.Action, error) {
	switch action.Kind {
	case KindMotion:
		return motionToAction(action.Motion)
	case KindJoint:
		return jointToAction(action.Joint)
	case KindStop:
		// Zero velocities everywhere, at full confidence.
		return policy.NewAction(policy.JointVelocities, make([]float64, armDOF), 1.0), nil
	case KindHome:
		values := make([]float64, len(HomePose))
		copy(values, HomePose)
		return policy.NewAction(policy.JointPositions, values, 0.9), nil
	case KindSkill:
		// Placeholder skill motion until a skill library exists: a small
		// upward end-effector nudge.
		return policy.NewAction(policy.EndEffectorDelta, []float64{0, 0, 0.1, 0, 0, 0}, 0.8), nil
	}
	return policy.Action{}, fmt.Errorf("%w: kind %v", ErrNoIntent, action.Kind)
}

func motionToAction(motion *MotionCommand) (policy.Action, error) {
	if !motion.Unit.Linear() {
		return policy.Action{}, fmt.Errorf("%w: motion needs a linear unit, got %s", ErrBadUnit, motion.Unit)
	}
	magnitude, err := motion.Unit.ToMeters(motion.Distance)
	if err != nil {
		return policy.Action{}, err
	}
	delta := motion.Direction.Vector(magnitude)
	values := []float64{delta.X(), delta.Y(), delta.Z(), 0, 0, 0}
	return policy.NewAction(policy.EndEffectorDelta, values, 0.9), nil
}

func jointToAction(joint *JointCommand) (policy.Action, error) {
	positionRad, err := joint.Unit.ToRadians(joint.Position)
	if err != nil {
		return policy.Action{}, fmt.Errorf("%w: joint targets need deg or rad", ErrBadUnit)
	}
	if int(joint.JointID) >= armDOF {
		return policy.Action{}, fmt.Errorf("%w: joint %d", ErrJointRange, joint.JointID)
	}
	values := make([]float64, armDOF)
	values[joint.JointID] = positionRad
	return policy.NewAction(policy.JointPositions, values, 0.9), nil
}
