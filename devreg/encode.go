package devreg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sr-robotics/srcore/canbus"
)

// CommandKind selects the joint command variant.
type CommandKind int

const (
	// TorqueNm commands a direct torque in newton-metres.
	TorqueNm CommandKind = iota
	// Position commands a target angle in radians.
	Position
	// Velocity commands a target rate in radians per second.
	Velocity
)

// JointCommand is one command for one joint, in engineering units.
type JointCommand struct {
	Kind  CommandKind
	Value float32
}

func Torque(nm float32) JointCommand   { return JointCommand{Kind: TorqueNm, Value: nm} }
func Pos(rad float32) JointCommand     { return JointCommand{Kind: Position, Value: rad} }
func Vel(radPerS float32) JointCommand { return JointCommand{Kind: Velocity, Value: radPerS} }

// Gain quantization ranges for the MIT packing.
const (
	kpMin, kpMax = 0.0, 500.0
	kdMin, kdMax = 0.0, 5.0
)

// BuildFramesForJoint encodes cmd into one frame per format listed under
// the joint's map, in list order.
func BuildFramesForJoint(desc *DeviceDescriptor, jointName string, cmd JointCommand) ([]canbus.CanFrame, error) {
	var joint *Joint
	for i := range desc.Joints {
		if desc.Joints[i].Name == jointName {
			joint = &desc.Joints[i]
			break
		}
	}
	if joint == nil {
		return nil, fmt.Errorf("%w: %s", ErrJointNotFound, jointName)
	}

	out := make([]canbus.CanFrame, 0, len(joint.Map.Frames))
	for _, ff := range joint.Map.Frames {
		id, err := canbus.ParseID(ff.ID)
		if err != nil {
			return nil, fmt.Errorf("frame id %q: %w", ff.ID, err)
		}
		var frame canbus.CanFrame
		switch ff.Fmt {
		case "tmotor_cmd":
			frame = encodeTmotorCmd(desc, joint, id, cmd)
		case "odrive_set_pos":
			frame = encodeOdriveSetPos(id, cmd)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFmt, ff.Fmt)
		}
		out = append(out, frame)
	}
	return out, nil
}

// encodeTmotorCmd packs p(16) v(12) kp(12) kd(12) t(12) MSB-first into
// eight bytes per the T-Motor MIT command layout.
func encodeTmotorCmd(desc *DeviceDescriptor, joint *Joint, id canbus.CanID, cmd JointCommand) canbus.CanFrame {
	pMin, pMax := posRangeRad(desc)
	vMin, vMax := velRangeRad(desc)
	tMin, tMax := torqueRange(desc)

	var defaultKp, defaultKd float32
	if pd := joint.Map.PD; pd != nil {
		if pd.Kp != nil {
			defaultKp = *pd.Kp
		}
		if pd.Kd != nil {
			defaultKd = *pd.Kd
		}
	}

	var p, v, kp, kd, t float32
	switch cmd.Kind {
	case TorqueNm:
		t = cmd.Value
	case Position:
		p, kp, kd = cmd.Value, defaultKp, defaultKd
	case Velocity:
		v, kp, kd = cmd.Value, defaultKp, defaultKd
	}

	pU := mapToUint(p, pMin, pMax, 16)
	vU := mapToUint(v, vMin, vMax, 12)
	kpU := mapToUint(kp, kpMin, kpMax, 12)
	kdU := mapToUint(kd, kdMin, kdMax, 12)
	tU := mapToUint(t, tMin, tMax, 12)

	var data [8]byte
	data[0] = byte(pU >> 8)
	data[1] = byte(pU)
	data[2] = byte(vU >> 4)
	data[3] = byte(vU&0x0F)<<4 | byte(kpU>>8)&0x0F
	data[4] = byte(kpU)
	data[5] = byte(kdU >> 4)
	data[6] = byte(kdU&0x0F)<<4 | byte(tU>>8)&0x0F
	data[7] = byte(tU)

	return canbus.CanFrame{ID: id, Len: 8, Data: data}
}

// encodeOdriveSetPos writes a little-endian f32 position into bytes 0..4;
// bytes 4..8 stay zero as feed-forward placeholders. Only Position carries
// a meaningful value.
func encodeOdriveSetPos(id canbus.CanID, cmd JointCommand) canbus.CanFrame {
	var pos float32
	if cmd.Kind == Position {
		pos = cmd.Value
	}
	var data [8]byte
	binary.LittleEndian.PutUint32(data[0:4], math.Float32bits(pos))
	return canbus.CanFrame{ID: id, Len: 8, Data: data}
}

// mapToUint quantizes x over [min, max] into nbits, saturating at the range
// ends. Empty or inverted ranges and NaN inputs quantize to 0.
func mapToUint(x, min, max float32, nbits uint) uint32 {
	hi := float64(uint64(1)<<nbits - 1)
	if !(min < max) {
		return 0
	}
	y := float64(x-min) / float64(max-min)
	if math.IsNaN(y) || y < 0 {
		y = 0
	}
	if y > 1 {
		y = 1
	}
	return uint32(math.Round(y * hi))
}

// unmapFromUint is the inverse of mapToUint up to quantization error.
func unmapFromUint(u uint32, min, max float32, nbits uint) float32 {
	if !(min < max) {
		return min
	}
	hi := float64(uint64(1)<<nbits - 1)
	y := float64(u) / hi
	return min + float32(y)*(max-min)
}

// Range helpers scan for the first joint that declares a limit; defaults
// are the conservative T-Motor datasheet values.

func posRangeRad(desc *DeviceDescriptor) (float32, float32) {
	for _, j := range desc.Joints {
		if r := j.Limits.PosDeg; r != nil {
			lo := float32(r.Lo() * math.Pi / 180)
			hi := float32(r.Hi() * math.Pi / 180)
			if lo > hi {
				lo, hi = hi, lo
			}
			return lo, hi
		}
	}
	return -12.5, 12.5
}

func velRangeRad(desc *DeviceDescriptor) (float32, float32) {
	for _, j := range desc.Joints {
		if v := j.Limits.VelDps; v != nil {
			m := float32(*v * math.Pi / 180)
			return -m, m
		}
	}
	m := float32(45 * math.Pi / 180)
	return -m, m
}

func torqueRange(desc *DeviceDescriptor) (float32, float32) {
	for _, j := range desc.Joints {
		if t := j.Limits.TorqueNm; t != nil {
			m := float32(*t)
			return -m, m
		}
	}
	return -18, 18
}
