package intent

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Given a parser with the default threshold", t, func() {
		p, err := NewParser(DefaultConfig())
		So(err, ShouldBeNil)

		Convey("'raise arm 15 cm' parses as an upward motion", func() {
			res, err := p.Parse("raise arm 15 cm")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindMotion)
			So(res.Action.Motion.Direction, ShouldEqual, Up)
			So(res.Action.Motion.Distance, ShouldEqual, 15.0)
			So(res.Action.Motion.Unit, ShouldEqual, Centimeters)
			So(res.Confidence, ShouldBeGreaterThanOrEqualTo, 0.8)
			So(len(res.Entities), ShouldEqual, 1)
			So(res.Entities[0].Value, ShouldEqual, "15")
		})

		Convey("Synonyms and mixed case parse the same way", func() {
			res, err := p.Parse("Lift the arm by 3.5 inches")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindMotion)
			So(res.Action.Motion.Direction, ShouldEqual, Up)
			So(res.Action.Motion.Distance, ShouldEqual, 3.5)
			So(res.Action.Motion.Unit, ShouldEqual, Inches)
		})

		Convey("Lower, extend and retract map to their directions", func() {
			res, _ := p.Parse("lower arm 10 mm")
			So(res.Action.Motion.Direction, ShouldEqual, Down)
			So(res.Action.Motion.Unit, ShouldEqual, Millimeters)

			res, _ = p.Parse("extend arm 5 cm")
			So(res.Action.Motion.Direction, ShouldEqual, Forward)

			res, _ = p.Parse("retract arm 5 cm")
			So(res.Action.Motion.Direction, ShouldEqual, Backward)
		})

		Convey("Rotations carry degrees", func() {
			res, err := p.Parse("rotate left 45 degrees")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindMotion)
			So(res.Action.Motion.Direction, ShouldEqual, Left)
			So(res.Action.Motion.Distance, ShouldEqual, 45.0)
			So(res.Action.Motion.Unit, ShouldEqual, Degrees)

			res, err = p.Parse("turn right 90 deg")
			So(err, ShouldBeNil)
			So(res.Action.Motion.Direction, ShouldEqual, Right)
		})

		Convey("Stop is high priority with a tight timeout", func() {
			res, err := p.Parse("stop")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindStop)
			So(res.Action.Priority, ShouldEqual, uint8(10))
			So(res.Confidence, ShouldEqual, 1.0)
		})

		Convey("Home requires confirmation", func() {
			res, err := p.Parse("go to home position")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindHome)
			So(res.Action.RequiresConfirmation, ShouldBeTrue)
			So(res.Confidence, ShouldEqual, 1.0)
		})

		Convey("Joint moves extract the id, target and unit", func() {
			res, err := p.Parse("move joint 2 to 45 degrees")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindJoint)
			So(res.Action.Joint.JointID, ShouldEqual, uint32(2))
			So(res.Action.Joint.Position, ShouldEqual, 45.0)
			So(res.Action.Joint.Unit, ShouldEqual, Degrees)
			So(res.Confidence, ShouldEqual, 0.7)
		})

		Convey("Fallback catches home phrasings the pattern misses", func() {
			res, err := p.Parse("take it back home whenever convenient ok")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindHome)
			So(res.Confidence, ShouldEqual, 0.5)
		})

		Convey("Gibberish is rejected", func() {
			_, err := p.Parse("purple monkey dishwasher")
			So(errors.Is(err, ErrNoIntent), ShouldBeTrue)
		})
	})

	Convey("Given a raised threshold of 0.85", t, func() {
		p, err := NewParser(Config{ConfidenceThreshold: 0.85})
		So(err, ShouldBeNil)

		Convey("The short-text bonus decides at the 20 character boundary", func() {
			// 19 characters: prior 0.8 + bonus 0.1 clears 0.85.
			res, err := p.Parse("rotate left 123 deg")
			So(err, ShouldBeNil)
			So(res.Confidence, ShouldEqual, 0.9)

			// 20 characters: prior 0.8 alone falls short.
			_, err = p.Parse("rotate left 1234 deg")
			So(errors.Is(err, ErrNoIntent), ShouldBeTrue)
		})
	})

	Convey("Given a threshold above the stop prior", t, func() {
		p, err := NewParser(Config{ConfidenceThreshold: 0.95})
		So(err, ShouldBeNil)

		Convey("A long halt request lands in the keyword fallback", func() {
			res, err := p.Parse("please halt everything right now immediately")
			So(err, ShouldBeNil)
			So(res.Action.Kind, ShouldEqual, KindStop)
			So(res.Confidence, ShouldEqual, 0.5)
		})
	})
}

func TestUnits(t *testing.T) {
	Convey("Unit conversions", t, func() {
		Convey("Linear units convert to meters", func() {
			for _, tc := range []struct {
				unit Unit
				in   float64
				out  float64
			}{
				{Millimeters, 1000, 1},
				{Centimeters, 15, 0.15},
				{Meters, 2, 2},
				{Inches, 100, 2.54},
			} {
				v, err := tc.unit.ToMeters(tc.in)
				So(err, ShouldBeNil)
				So(v, ShouldAlmostEqual, tc.out, 1e-12)
			}
			_, err := Degrees.ToMeters(10)
			So(errors.Is(err, ErrBadUnit), ShouldBeTrue)
		})

		Convey("Angular units convert to radians", func() {
			v, err := Degrees.ToRadians(180)
			So(err, ShouldBeNil)
			So(v, ShouldAlmostEqual, 3.14159265, 1e-6)

			v, err = Radians.ToRadians(1.5)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 1.5)

			_, err = Centimeters.ToRadians(10)
			So(errors.Is(err, ErrBadUnit), ShouldBeTrue)
		})

		Convey("ParseUnit defaults unknown linear spellings to centimeters", func() {
			So(ParseUnit("furlongs"), ShouldEqual, Centimeters)
			So(ParseUnit("mm"), ShouldEqual, Millimeters)
			So(ParseUnit("°"), ShouldEqual, Degrees)
			So(ParseUnit("radians"), ShouldEqual, Radians)
		})
	})
}

func TestDirectionVector(t *testing.T) {
	Convey("Directions map onto base-frame axes", t, func() {
		So(Up.Vector(2).Z(), ShouldEqual, 2.0)
		So(Down.Vector(2).Z(), ShouldEqual, -2.0)
		So(Left.Vector(1).X(), ShouldEqual, -1.0)
		So(Right.Vector(1).X(), ShouldEqual, 1.0)
		So(Forward.Vector(1).Y(), ShouldEqual, 1.0)
		So(Backward.Vector(1).Y(), ShouldEqual, -1.0)
		So(Clockwise.Vector(1), ShouldResemble, Up.Vector(0))
	})
}
