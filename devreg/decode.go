package devreg

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/sr-robotics/srcore/canbus"
)

// TelemetryRecord is one decoded telemetry frame. Fields holds named
// scalar values; records are produced per frame and not retained.
type TelemetryRecord struct {
	ID     string         `json:"id"`
	Fmt    string         `json:"fmt"`
	TS     string         `json:"ts,omitempty"`
	Fields map[string]any `json:"fields"`
}

// DecodeByID scans the descriptor's telemetry list for a matching id and
// dispatches to the format-specific unpacker. Unknown ids and short
// payloads yield nil without error.
func DecodeByID(desc *DeviceDescriptor, id canbus.CanID, data []byte, ts time.Time) *TelemetryRecord {
	for _, t := range desc.Telemetry {
		tid, err := canbus.ParseID(t.ID)
		if err != nil {
			continue
		}
		if tid == id {
			return DecodeFmt(desc, t.Fmt, data, ts)
		}
	}
	return nil
}

// DecodeFmt unpacks data using the named decoder. Unknown formats yield nil.
func DecodeFmt(desc *DeviceDescriptor, fmt string, data []byte, ts time.Time) *TelemetryRecord {
	switch fmt {
	case "tmotor_state":
		return decodeTmotorState(desc, data, ts)
	case "odrive_get_state":
		return decodeOdriveState(data, ts)
	default:
		return nil
	}
}

// decodeTmotorState unpacks p(16) v(12) gap(8) t(12) with the same ranges
// the encoder used, so encode then decode round-trips within one
// quantization step.
func decodeTmotorState(desc *DeviceDescriptor, data []byte, ts time.Time) *TelemetryRecord {
	if len(data) < 8 {
		return nil
	}
	pU := uint32(data[0])<<8 | uint32(data[1])
	vU := uint32(data[2])<<4 | uint32(data[3])>>4
	tU := uint32(data[6]&0x0F)<<8 | uint32(data[7])

	pMin, pMax := posRangeRad(desc)
	vMin, vMax := velRangeRad(desc)
	tMin, tMax := torqueRange(desc)

	return &TelemetryRecord{
		ID:  "tmotor_state",
		Fmt: "tmotor_state",
		TS:  formatTS(ts),
		Fields: map[string]any{
			"pos_rad":   float64(unmapFromUint(pU, pMin, pMax, 16)),
			"vel_rad_s": float64(unmapFromUint(vU, vMin, vMax, 12)),
			"torque_nm": float64(unmapFromUint(tU, tMin, tMax, 12)),
		},
	}
}

// decodeOdriveState reads two little-endian f32s: position then velocity.
func decodeOdriveState(data []byte, ts time.Time) *TelemetryRecord {
	if len(data) < 8 {
		return nil
	}
	pos := math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	vel := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))

	return &TelemetryRecord{
		ID:  "odrive_get_state",
		Fmt: "odrive_get_state",
		TS:  formatTS(ts),
		Fields: map[string]any{
			"pos": float64(pos),
			"vel": float64(vel),
		},
	}
}

func formatTS(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
