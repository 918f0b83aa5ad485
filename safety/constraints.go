package safety

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// ConstraintState is the input to a check pass. Extras lets callers feed
// additional named scalars referenced by custom constraints.
type ConstraintState struct {
	JointPositions  []float64
	JointVelocities []float64
	EEPosition      *mgl64.Vec3
	Extras          map[string]float64
}

type compiledConstraint struct {
	SafetyConstraint
	pred boolExpr
}

// Engine registers constraints and evaluates them against states. It is
// single-writer: additions, removals and checks must not interleave from
// multiple goroutines.
type Engine struct {
	constraints []compiledConstraint
	ctx         evalContext
	logger      *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{ctx: make(evalContext), logger: logger}
}

// Add compiles and validates the constraint. Validation evaluates the
// predicate against a zero context holding only the variables it
// references; any evaluation failure rejects the constraint. Adding the
// same constraint twice is observable as two evaluations per check.
func (e *Engine) Add(c SafetyConstraint) error {
	pred, err := compileConstraint(c.Type)
	if err != nil {
		return fmt.Errorf("compiling constraint %q: %w", c.Name, err)
	}

	vars := make(map[string]struct{})
	pred.collectVars(vars)
	probe := make(evalContext, len(vars))
	for v := range vars {
		probe[v] = 0
	}
	if _, err := pred.eval(probe); err != nil {
		return fmt.Errorf("validating constraint %q: %w", c.Name, err)
	}

	e.constraints = append(e.constraints, compiledConstraint{SafetyConstraint: c, pred: pred})
	return nil
}

// Remove drops every constraint with the given name.
func (e *Engine) Remove(name string) {
	kept := e.constraints[:0]
	for _, c := range e.constraints {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	e.constraints = kept
}

// Constraints returns the registered rules in registration order.
func (e *Engine) Constraints() []SafetyConstraint {
	out := make([]SafetyConstraint, len(e.constraints))
	for i, c := range e.constraints {
		out[i] = c.SafetyConstraint
	}
	return out
}

// Clear drops every constraint.
func (e *Engine) Clear() {
	e.constraints = nil
}

// CheckAll evaluates every enabled constraint against the state. A false
// result with Warning severity lands in warnings, any other severity in
// violations. Evaluation errors are logged and skipped so one missing
// variable cannot taint the batch.
func (e *Engine) CheckAll(state ConstraintState) CheckResult {
	start := time.Now()
	e.updateContext(state)

	var violations, warnings []Violation
	for _, c := range e.constraints {
		if !c.Enabled {
			continue
		}
		ok, err := c.pred.eval(e.ctx)
		if err != nil {
			e.logger.Error("constraint evaluation failed",
				zap.String("constraint", c.Name), zap.Error(err))
			continue
		}
		if ok {
			continue
		}
		v := Violation{
			Timestamp:      time.Now().UTC(),
			ConstraintName: c.Name,
			Severity:       c.Severity,
			Message:        fmt.Sprintf("constraint %q violated", c.Name),
		}
		if c.Severity == SeverityWarning {
			warnings = append(warnings, v)
		} else {
			violations = append(violations, v)
		}
	}

	return CheckResult{
		IsSafe:     len(violations) == 0,
		Violations: violations,
		Warnings:   warnings,
		Duration:   time.Since(start),
	}
}

func (e *Engine) updateContext(state ConstraintState) {
	for i, p := range state.JointPositions {
		e.ctx[fmt.Sprintf("joint_%d", i)] = p
	}
	for i, v := range state.JointVelocities {
		e.ctx[fmt.Sprintf("vel_%d", i)] = v
	}
	if ee := state.EEPosition; ee != nil {
		e.ctx["ee_0"] = ee.X()
		e.ctx["ee_1"] = ee.Y()
		e.ctx["ee_2"] = ee.Z()
	}
	for k, v := range state.Extras {
		e.ctx[k] = v
	}
}

// compileConstraint lowers a constraint variant into its predicate tree.
// Velocity and torque use symmetric bounds; the tree has no abs primitive.
func compileConstraint(t ConstraintType) (boolExpr, error) {
	switch c := t.(type) {
	case JointPosition:
		return between(vr(fmt.Sprintf("joint_%d", c.Idx)), c.Min, c.Max), nil
	case JointVelocity:
		return between(vr(fmt.Sprintf("vel_%d", c.Idx)), -c.Max, c.Max), nil
	case JointTorque:
		return between(vr(fmt.Sprintf("torque_%d", c.Idx)), -c.Max, c.Max), nil
	case WorkspaceBounds:
		return andAll(
			between(vr("ee_0"), c.MinX, c.MaxX),
			between(vr("ee_1"), c.MinY, c.MaxY),
			between(vr("ee_2"), c.MinZ, c.MaxZ),
		), nil
	case EndEffectorBounds:
		// Squared reach avoids needing a sqrt primitive.
		reachSq := add(
			add(mul(vr("ee_0"), vr("ee_0")), mul(vr("ee_1"), vr("ee_1"))),
			mul(vr("ee_2"), vr("ee_2")),
		)
		return and(
			le(reachSq, lit(c.MaxReach*c.MaxReach)),
			ge(vr("ee_2"), lit(c.MinHeight)),
		), nil
	case CollisionAvoidance:
		return constBool{val: true}, nil
	default:
		return nil, fmt.Errorf("unknown constraint type %T", t)
	}
}

// DefaultEngine registers the stock rule set for a 6-DOF arm: per-joint
// position limits at +/-3.14 rad (Critical), the workspace box (Critical),
// and per-joint velocity limits at 2 rad/s (Warning).
func DefaultEngine(logger *zap.Logger) (*Engine, error) {
	e := NewEngine(logger)
	for i := 0; i < 6; i++ {
		err := e.Add(SafetyConstraint{
			Name:        fmt.Sprintf("joint_%d_position", i),
			Type:        JointPosition{Idx: i, Min: -3.14, Max: 3.14},
			Severity:    SeverityCritical,
			Enabled:     true,
			Description: fmt.Sprintf("joint %d position limits", i),
		})
		if err != nil {
			return nil, err
		}
	}
	err := e.Add(SafetyConstraint{
		Name:        "workspace_bounds",
		Type:        WorkspaceBounds{MinX: -1, MaxX: 1, MinY: -1, MaxY: 1, MinZ: 0, MaxZ: 1.5},
		Severity:    SeverityCritical,
		Enabled:     true,
		Description: "workspace boundary limits",
	})
	if err != nil {
		return nil, err
	}
	for i := 0; i < 6; i++ {
		err := e.Add(SafetyConstraint{
			Name:        fmt.Sprintf("joint_%d_velocity", i),
			Type:        JointVelocity{Idx: i, Max: 2},
			Severity:    SeverityWarning,
			Enabled:     true,
			Description: fmt.Sprintf("joint %d velocity limit", i),
		})
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}
