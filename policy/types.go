// Package policy defines the action and observation currency shared by the
// intent pipeline, the safety gate, and external policy backends.
package policy

import (
	"context"
	"time"
)

// ActionType tags the meaning of an action's value vector.
type ActionType int

const (
	JointPositions ActionType = iota
	JointVelocities
	JointTorques
	EndEffectorDelta
	Gripper
)

var actionTypeNames = [...]string{
	JointPositions:   "joint_positions",
	JointVelocities:  "joint_velocities",
	JointTorques:     "joint_torques",
	EndEffectorDelta: "end_effector_delta",
	Gripper:          "gripper",
}

func (t ActionType) String() string {
	if int(t) < len(actionTypeNames) {
		return actionTypeNames[t]
	}
	return "unknown"
}

// Action is one executable command. Values are interpreted per Type;
// Timestamp is seconds since the Unix epoch.
type Action struct {
	Type       ActionType
	Values     []float64
	Confidence float64
	Timestamp  float64
}

// NewAction stamps an action with the current wall clock.
func NewAction(t ActionType, values []float64, confidence float64) Action {
	return Action{
		Type:       t,
		Values:     values,
		Confidence: confidence,
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
	}
}

// Observation is a snapshot of robot and scene state. EEPose, when present,
// is (x, y, z, rx, ry, rz).
type Observation struct {
	ImageShape      [3]int
	JointPositions  []float64
	JointVelocities []float64
	EEPose          []float64
	Depth           []float64
	DOFMask         []bool
	DatasetName     string
	CameraTBase     []float64
	Timestamp       float64
}

// PolicyResult is one inference round-trip.
type PolicyResult struct {
	Actions         []Action
	Metadata        map[string]string
	InferenceTimeMs float64
}

// Policy is an external action source. Implementations must be safe for
// sequential use from the command path; Predict may block on I/O.
type Policy interface {
	Predict(ctx context.Context, obs Observation) (PolicyResult, error)
}
