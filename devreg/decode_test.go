package devreg

import (
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/sr-robotics/srcore/canbus"
)

func TestDecodeByID(t *testing.T) {
	Convey("Given a T-Motor descriptor", t, func() {
		desc := tmotorDesc()
		stateID, _ := canbus.StandardID(0x241)

		Convey("Encoded positions decode back within quantization error", func() {
			frames, err := BuildFramesForJoint(desc, "shoulder", Pos(0.7854))
			So(err, ShouldBeNil)

			rec := DecodeByID(desc, stateID, frames[0].Payload(), time.Now().UTC())
			So(rec, ShouldNotBeNil)
			So(rec.Fmt, ShouldEqual, "tmotor_state")
			pos, ok := rec.Fields["pos_rad"].(float64)
			So(ok, ShouldBeTrue)
			So(math.Abs(pos-0.7854), ShouldBeLessThan, 5e-5)
		})

		Convey("Torque round-trips within the 12-bit step", func() {
			frames, _ := BuildFramesForJoint(desc, "shoulder", Torque(5))
			rec := DecodeByID(desc, stateID, frames[0].Payload(), time.Time{})
			So(rec, ShouldNotBeNil)
			tq := rec.Fields["torque_nm"].(float64)
			So(math.Abs(tq-5), ShouldBeLessThanOrEqualTo, 20.0/4095)
			So(rec.TS, ShouldEqual, "")
		})

		Convey("Unknown ids yield nothing", func() {
			other, _ := canbus.StandardID(0x300)
			rec := DecodeByID(desc, other, make([]byte, 8), time.Now())
			So(rec, ShouldBeNil)
		})

		Convey("Short payloads yield nothing", func() {
			rec := DecodeByID(desc, stateID, []byte{0x01, 0x02}, time.Now())
			So(rec, ShouldBeNil)
		})
	})

	Convey("Given an ODrive descriptor", t, func() {
		desc := odriveDesc()
		stateID, _ := canbus.StandardID(0x009)

		Convey("State frames decode two little-endian f32s", func() {
			data := make([]byte, 8)
			// pos = 1.5f, vel = -0.25f
			copy(data[0:4], []byte{0x00, 0x00, 0xC0, 0x3F})
			copy(data[4:8], []byte{0x00, 0x00, 0x80, 0xBE})
			rec := DecodeByID(desc, stateID, data, time.Now().UTC())
			So(rec, ShouldNotBeNil)
			So(rec.Fmt, ShouldEqual, "odrive_get_state")
			So(rec.Fields["pos"], ShouldEqual, 1.5)
			So(rec.Fields["vel"], ShouldEqual, -0.25)
			So(rec.TS, ShouldNotBeEmpty)
		})
	})

	Convey("Unknown formats yield nothing", t, func() {
		desc := tmotorDesc()
		So(DecodeFmt(desc, "mystery_state", make([]byte, 8), time.Now()), ShouldBeNil)
	})
}
