// Package devreg loads device descriptors and translates joint commands
// and telemetry between engineering units and CAN frames.
package devreg

import (
	"errors"
	"fmt"
)

var (
	ErrJointNotFound  = errors.New("joint not found")
	ErrUnsupportedFmt = errors.New("unsupported frame fmt")
	ErrBadDescriptor  = errors.New("bad descriptor")
	ErrBadSchema      = errors.New("unsupported descriptor schema")
)

// DeviceDescriptor is one device's YAML document. Identity is ID; bus and
// protocol are informational tags.
type DeviceDescriptor struct {
	Schema    string         `yaml:"schema,omitempty"`
	ID        string         `yaml:"id"`
	Bus       string         `yaml:"bus"`
	Protocol  string         `yaml:"protocol"`
	NodeID    *uint32        `yaml:"node_id,omitempty"`
	Joints    []Joint        `yaml:"joints"`
	Telemetry []TelemetryMap `yaml:"telemetry"`
	Heartbeat *Heartbeat     `yaml:"heartbeat,omitempty"`
}

// Joint identity within a device is Name.
type Joint struct {
	Name   string      `yaml:"name"`
	Limits JointLimits `yaml:"limits"`
	Map    JointMap    `yaml:"map"`
}

// JointLimits are engineering-unit bounds. Velocity and torque limits are
// symmetric magnitudes; position is an explicit (lo, hi) pair in degrees.
type JointLimits struct {
	PosDeg   *Range   `yaml:"pos_deg,omitempty"`
	VelDps   *float64 `yaml:"vel_dps,omitempty"`
	TorqueNm *float64 `yaml:"torque_nm,omitempty"`
}

// Range is a two-element (lo, hi) YAML sequence.
type Range [2]float64

func (r *Range) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var vals []float64
	if err := unmarshal(&vals); err != nil {
		return err
	}
	if len(vals) != 2 {
		return fmt.Errorf("%w: range needs exactly 2 elements, got %d", ErrBadDescriptor, len(vals))
	}
	r[0], r[1] = vals[0], vals[1]
	return nil
}

func (r Range) Lo() float64 { return r[0] }
func (r Range) Hi() float64 { return r[1] }

// JointMap binds a joint to its command frames.
type JointMap struct {
	Mode   string        `yaml:"mode,omitempty"`
	Scale  Scale         `yaml:"scale"`
	Frames []CanFrameFmt `yaml:"frames"`
	PD     *PdGains      `yaml:"pd,omitempty"`
}

type Scale struct {
	KT *float64 `yaml:"k_t,omitempty"`
}

type PdGains struct {
	Kp *float32 `yaml:"kp,omitempty"`
	Kd *float32 `yaml:"kd,omitempty"`
}

// CanFrameFmt selects an encoder for one command frame. ID is textual
// (decimal or 0x hex) and resolved at encode time.
type CanFrameFmt struct {
	ID  string `yaml:"id"`
	Fmt string `yaml:"fmt"`
}

// TelemetryMap selects a decoder for one telemetry id.
type TelemetryMap struct {
	ID  string `yaml:"id"`
	Fmt string `yaml:"fmt"`
}

type Heartbeat struct {
	ID       string `yaml:"id"`
	PeriodMs uint64 `yaml:"period_ms"`
}
