package canbus

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCanID(t *testing.T) {
	Convey("Given CAN identifier constructors", t, func() {
		Convey("Standard ids accept up to 11 bits", func() {
			id, err := StandardID(0x7FF)
			So(err, ShouldBeNil)
			So(id.Raw(), ShouldEqual, uint32(0x7FF))
			So(id.Extended(), ShouldBeFalse)

			_, err = StandardID(0x800)
			So(err, ShouldWrap, ErrInvalidID)
		})

		Convey("Extended ids accept up to 29 bits", func() {
			id, err := ExtendedID(0x1FFFFFFF)
			So(err, ShouldBeNil)
			So(id.Extended(), ShouldBeTrue)

			_, err = ExtendedID(0x20000000)
			So(err, ShouldWrap, ErrInvalidID)
		})

		Convey("String renders 3 hex digits for standard, 8 for extended", func() {
			id, _ := StandardID(0x123)
			So(id.String(), ShouldEqual, "0x123")
			id, _ = StandardID(0x1)
			So(id.String(), ShouldEqual, "0x001")
			eid, _ := ExtendedID(0x12345678)
			So(eid.String(), ShouldEqual, "0x12345678")
		})
	})
}

func TestParseID(t *testing.T) {
	Convey("Given textual CAN ids", t, func() {
		Convey("Decimal and hex forms both parse", func() {
			id, err := ParseID("291")
			So(err, ShouldBeNil)
			So(id.Raw(), ShouldEqual, uint32(0x123))

			id, err = ParseID("0x123")
			So(err, ShouldBeNil)
			So(id.Raw(), ShouldEqual, uint32(0x123))
			So(id.Extended(), ShouldBeFalse)
		})

		Convey("Magnitude selects the frame format", func() {
			id, err := ParseID("0x7FF")
			So(err, ShouldBeNil)
			So(id.Extended(), ShouldBeFalse)

			id, err = ParseID("0x800")
			So(err, ShouldBeNil)
			So(id.Extended(), ShouldBeTrue)
		})

		Convey("Garbage is rejected", func() {
			_, err := ParseID("not-an-id")
			So(err, ShouldWrap, ErrInvalidID)
		})
	})
}

func TestNewFrame(t *testing.T) {
	Convey("Given frame construction", t, func() {
		id, _ := StandardID(0x123)

		Convey("Payloads up to 8 bytes are copied", func() {
			f, err := NewFrame(id, []byte{0xDE, 0xAD, 0xBE, 0xEF})
			So(err, ShouldBeNil)
			So(f.Len, ShouldEqual, uint8(4))
			So(f.Payload(), ShouldResemble, []byte{0xDE, 0xAD, 0xBE, 0xEF})
			So(f.Timestamp.IsZero(), ShouldBeTrue)
		})

		Convey("A ninth byte is refused", func() {
			_, err := NewFrame(id, make([]byte, 9))
			So(err, ShouldWrap, ErrInvalidFrame)
		})

		Convey("Bytes beyond Len stay zero", func() {
			f, _ := NewFrame(id, []byte{0xFF})
			So(f.Data[1], ShouldEqual, byte(0))
			So(f.Data[7], ShouldEqual, byte(0))
		})
	})
}

func TestHexParsers(t *testing.T) {
	Convey("Given hex byte inputs", t, func() {
		Convey("Token lists accept bare and 0x-prefixed bytes", func() {
			b, err := ParseHexBytes([]string{"DE", "0xad", "BE", "ef"})
			So(err, ShouldBeNil)
			So(b, ShouldResemble, []byte{0xDE, 0xAD, 0xBE, 0xEF})
		})

		Convey("Compact strings must have even length", func() {
			b, err := ParseHexCompact("DEADBEEF")
			So(err, ShouldBeNil)
			So(b, ShouldResemble, []byte{0xDE, 0xAD, 0xBE, 0xEF})

			_, err = ParseHexCompact("DEA")
			So(err, ShouldNotBeNil)
		})

		Convey("Non-hex tokens are rejected", func() {
			_, err := ParseHexBytes([]string{"ZZ"})
			So(err, ShouldNotBeNil)
		})
	})
}
