// Package intent translates natural-language commands into robot actions.
// Parsing is rule based; no learned components sit in this path.
package intent

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrNoIntent   = errors.New("could not parse command")
	ErrBadUnit    = errors.New("unit not valid for this command")
	ErrJointRange = errors.New("joint id out of range")
)

// Direction of a Cartesian motion command.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
	Forward
	Backward
	Clockwise
	CounterClockwise
)

var directionNames = [...]string{
	"up", "down", "left", "right", "forward", "backward",
	"clockwise", "counter_clockwise",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// Vector maps the direction onto base-frame axes with the given magnitude.
// Rotational directions carry no translation.
func (d Direction) Vector(magnitude float64) mgl64.Vec3 {
	switch d {
	case Up:
		return mgl64.Vec3{0, 0, magnitude}
	case Down:
		return mgl64.Vec3{0, 0, -magnitude}
	case Left:
		return mgl64.Vec3{-magnitude, 0, 0}
	case Right:
		return mgl64.Vec3{magnitude, 0, 0}
	case Forward:
		return mgl64.Vec3{0, magnitude, 0}
	case Backward:
		return mgl64.Vec3{0, -magnitude, 0}
	}
	return mgl64.Vec3{}
}

// Unit of a distance or angle.
type Unit int

const (
	Millimeters Unit = iota
	Centimeters
	Meters
	Inches
	Degrees
	Radians
)

var unitNames = [...]string{"mm", "cm", "m", "in", "deg", "rad"}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return "unknown"
}

// Linear reports whether the unit measures distance rather than angle.
func (u Unit) Linear() bool {
	return u != Degrees && u != Radians
}

// ToMeters converts a linear magnitude.
func (u Unit) ToMeters(v float64) (float64, error) {
	switch u {
	case Millimeters:
		return v * 0.001, nil
	case Centimeters:
		return v * 0.01, nil
	case Meters:
		return v, nil
	case Inches:
		return v * 0.0254, nil
	}
	return 0, ErrBadUnit
}

// ToRadians converts an angular magnitude.
func (u Unit) ToRadians(v float64) (float64, error) {
	switch u {
	case Degrees:
		return v * deg2rad, nil
	case Radians:
		return v, nil
	}
	return 0, ErrBadUnit
}

const deg2rad = 3.14159265358979323846 / 180

// ParseUnit normalizes a textual unit; unrecognized linear spellings fall
// back to centimeters.
func ParseUnit(s string) Unit {
	switch s {
	case "mm", "millimeter", "millimeters":
		return Millimeters
	case "in", "inch", "inches":
		return Inches
	case "m", "meter", "meters":
		return Meters
	case "deg", "degree", "degrees", "°":
		return Degrees
	case "rad", "radian", "radians":
		return Radians
	default:
		return Centimeters
	}
}

// ActionKind tags the RobotAction variant.
type ActionKind int

const (
	KindMotion ActionKind = iota
	KindJoint
	KindStop
	KindHome
	KindSkill
)

var kindNames = [...]string{"motion", "joint", "stop", "home", "skill"}

func (k ActionKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MotionCommand moves the end effector along a direction.
type MotionCommand struct {
	Direction Direction
	Distance  float64
	Unit      Unit
	Speed     *float64
}

// JointCommand targets a single joint position.
type JointCommand struct {
	JointID  uint32
	Position float64
	Unit     Unit
	Speed    *float64
}

// RobotAction is one parsed, dispatchable command.
type RobotAction struct {
	Kind                 ActionKind
	Motion               *MotionCommand
	Joint                *JointCommand
	Skill                string
	Priority             uint8
	RequiresConfirmation bool
	Timeout              time.Duration
}

// MotionAction builds a default-priority motion with a 10s timeout.
func MotionAction(dir Direction, distance float64, unit Unit) RobotAction {
	return RobotAction{
		Kind:     KindMotion,
		Motion:   &MotionCommand{Direction: dir, Distance: distance, Unit: unit},
		Priority: 1,
		Timeout:  10 * time.Second,
	}
}

// JointAction builds a default-priority joint target with a 10s timeout.
func JointAction(jointID uint32, position float64, unit Unit) RobotAction {
	return RobotAction{
		Kind:     KindJoint,
		Joint:    &JointCommand{JointID: jointID, Position: position, Unit: unit},
		Priority: 1,
		Timeout:  10 * time.Second,
	}
}

// StopAction outranks everything else and must resolve within a second.
func StopAction() RobotAction {
	return RobotAction{
		Kind:     KindStop,
		Priority: 10,
		Timeout:  time.Second,
	}
}

// HomeAction requires operator confirmation; homing crosses the workspace.
func HomeAction() RobotAction {
	return RobotAction{
		Kind:                 KindHome,
		Priority:             1,
		RequiresConfirmation: true,
		Timeout:              30 * time.Second,
	}
}

// SkillAction names a complex skill for downstream lookup.
func SkillAction(name string) RobotAction {
	return RobotAction{
		Kind:     KindSkill,
		Skill:    name,
		Priority: 1,
		Timeout:  10 * time.Second,
	}
}
