// Package safety holds the constraint engine, the action safety gate, and
// the watchdog manager guarding the robot command path.
package safety

import (
	"time"
)

// Severity orders how bad a violation is. Warnings inform; everything
// above Warning blocks dispatch.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
	SeverityEmergency
)

var severityNames = [...]string{"warning", "error", "critical", "emergency"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "unknown"
}

// ConstraintType is the closed set of constraint variants.
type ConstraintType interface {
	isConstraintType()
}

// JointPosition bounds joint Idx to [Min, Max] radians.
type JointPosition struct {
	Idx      int
	Min, Max float64
}

// JointVelocity bounds |vel_Idx| to Max rad/s.
type JointVelocity struct {
	Idx int
	Max float64
}

// JointTorque bounds |torque_Idx| to Max Nm.
type JointTorque struct {
	Idx int
	Max float64
}

// WorkspaceBounds is an axis-aligned box on the end-effector position.
type WorkspaceBounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// EndEffectorBounds limits reach from the base and enforces a floor.
type EndEffectorBounds struct {
	MaxReach  float64
	MinHeight float64
}

// CollisionAvoidance is a placeholder for a pluggable collision checker;
// it currently always passes.
type CollisionAvoidance struct {
	Enabled bool
}

func (JointPosition) isConstraintType()      {}
func (JointVelocity) isConstraintType()      {}
func (JointTorque) isConstraintType()        {}
func (WorkspaceBounds) isConstraintType()    {}
func (EndEffectorBounds) isConstraintType()  {}
func (CollisionAvoidance) isConstraintType() {}

// SafetyConstraint is one named rule. Disabled constraints stay registered
// but are skipped during checks.
type SafetyConstraint struct {
	Name        string
	Type        ConstraintType
	Severity    Severity
	Enabled     bool
	Description string
}

// Violation reports one failed constraint evaluation.
type Violation struct {
	Timestamp      time.Time
	ConstraintName string
	Severity       Severity
	Message        string
}

// CheckResult is the outcome of one engine pass. IsSafe holds exactly when
// Violations is empty; warnings never block.
type CheckResult struct {
	IsSafe     bool
	Violations []Violation
	Warnings   []Violation
	Duration   time.Duration
}

// WatchdogStatus is one liveness probe outcome.
type WatchdogStatus struct {
	Name                string
	Healthy             bool
	LastCheck           time.Time
	LastError           string
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// EventType labels safety events for audit logging.
type EventType string

const (
	EventViolationDetected EventType = "ViolationDetected"
	EventWatchdogFailure   EventType = "WatchdogFailure"
	EventEmergencyStop     EventType = "EmergencyStop"
	EventSafetyOverride    EventType = "SafetyOverride"
	EventSystemRecovery    EventType = "SystemRecovery"
	EventConstraintUpdated EventType = "ConstraintUpdated"
)

// SafetyEvent is a structured record for the audit trail and callbacks.
type SafetyEvent struct {
	Timestamp time.Time
	EventType EventType
	Message   string
	Severity  Severity
	Context   map[string]string
}
