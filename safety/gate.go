package safety

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/sr-robotics/srcore/policy"
)

// GateStatus classifies an action before dispatch. Callers must refuse to
// dispatch on anything but GateSafe unless an explicit override is taken.
type GateStatus int

const (
	GateSafe GateStatus = iota
	GateWarning
	GateViolation
	GateEmergencyStop
)

var gateStatusNames = [...]string{"safe", "warning", "violation", "emergency_stop"}

func (s GateStatus) String() string {
	if int(s) < len(gateStatusNames) {
		return gateStatusNames[s]
	}
	return "unknown"
}

// GateResult carries the classification and the first relevant message.
type GateResult struct {
	Status  GateStatus
	Message string
}

// CheckActionSafety projects the hypothetical next state the action would
// produce and runs it through the engine. The first violation message wins,
// then the first warning; GateEmergencyStop is reserved for the watchdog
// path and never produced here.
func CheckActionSafety(action policy.Action, obs policy.Observation, engine *Engine) GateResult {
	state := projectState(action, obs)
	result := engine.CheckAll(state)

	if len(result.Violations) > 0 {
		return GateResult{Status: GateViolation, Message: result.Violations[0].Message}
	}
	if len(result.Warnings) > 0 {
		return GateResult{Status: GateWarning, Message: result.Warnings[0].Message}
	}
	return GateResult{Status: GateSafe}
}

// projectState builds the post-action state. Action types without a
// projection rule mirror the observation, so only constraints insensitive
// to the action's effect apply.
func projectState(action policy.Action, obs policy.Observation) ConstraintState {
	state := ConstraintState{
		JointPositions:  obs.JointPositions,
		JointVelocities: obs.JointVelocities,
	}
	if len(obs.EEPose) >= 3 {
		ee := mgl64.Vec3{obs.EEPose[0], obs.EEPose[1], obs.EEPose[2]}
		state.EEPosition = &ee
	}

	switch action.Type {
	case policy.JointPositions:
		state.JointPositions = action.Values
	case policy.EndEffectorDelta:
		if state.EEPosition != nil && len(action.Values) >= 3 {
			delta := mgl64.Vec3{action.Values[0], action.Values[1], action.Values[2]}
			ee := state.EEPosition.Add(delta)
			state.EEPosition = &ee
		}
	}
	return state
}
