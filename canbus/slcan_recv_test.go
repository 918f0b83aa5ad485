package canbus

import (
	"errors"
	"testing"
	"time"

	"github.com/goburrow/serial"
	. "github.com/smartystreets/goconvey/convey"
)

// fakePort scripts Read results for the receive path. Each entry is one
// Read: a nil chunk models a port read cycle expiring, otherwise the chunk
// is delivered. Exhausted scripts keep timing out, or fail with failWith.
type fakePort struct {
	chunks   [][]byte
	failWith error
	reads    int
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.reads++
	if len(p.chunks) == 0 {
		if p.failWith != nil {
			return 0, p.failWith
		}
		return 0, serial.ErrTimeout
	}
	chunk := p.chunks[0]
	p.chunks = p.chunks[1:]
	if chunk == nil {
		return 0, serial.ErrTimeout
	}
	return copy(b, chunk), nil
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Close() error                { return nil }
func (p *fakePort) Open(*serial.Config) error   { return nil }

func TestSlcanRecv(t *testing.T) {
	Convey("Given an SLCAN bus over a scripted port", t, func() {
		Convey("A zero timeout with nothing buffered returns without reading", func() {
			port := &fakePort{}
			bus := &SlcanBus{path: "fake0", port: port}

			_, err := bus.Recv(0)
			So(err, ShouldEqual, ErrTimeout)
			So(port.reads, ShouldEqual, 0)
		})

		Convey("A zero timeout drains an already-buffered line", func() {
			port := &fakePort{}
			bus := &SlcanBus{path: "fake0", port: port, acc: []byte("t1232BEEF\r")}

			f, err := bus.Recv(0)
			So(err, ShouldBeNil)
			So(f.ID.Raw(), ShouldEqual, uint32(0x123))
			So(f.Payload(), ShouldResemble, []byte{0xBE, 0xEF})
			So(port.reads, ShouldEqual, 0)
		})

		Convey("A line split across reads is reassembled", func() {
			port := &fakePort{chunks: [][]byte{
				[]byte("t123"),
				nil, // one empty cycle in the middle
				[]byte("2BE"),
				[]byte("EF\r"),
			}}
			bus := &SlcanBus{path: "fake0", port: port}

			f, err := bus.Recv(time.Second)
			So(err, ShouldBeNil)
			So(f.ID.Raw(), ShouldEqual, uint32(0x123))
			So(f.Payload(), ShouldResemble, []byte{0xBE, 0xEF})
			So(port.reads, ShouldEqual, 4)
		})

		Convey("A partial line survives a timed-out call and completes later", func() {
			port := &fakePort{chunks: [][]byte{[]byte("T123456782")}}
			bus := &SlcanBus{path: "fake0", port: port}

			_, err := bus.Recv(10 * time.Millisecond)
			So(err, ShouldEqual, ErrTimeout)

			port.chunks = [][]byte{[]byte("0102\r")}
			f, err := bus.Recv(time.Second)
			So(err, ShouldBeNil)
			So(f.ID.Extended(), ShouldBeTrue)
			So(f.ID.Raw(), ShouldEqual, uint32(0x12345678))
			So(f.Payload(), ShouldResemble, []byte{0x01, 0x02})
		})

		Convey("A positive timeout expires once the deadline passes", func() {
			port := &fakePort{}
			bus := &SlcanBus{path: "fake0", port: port}

			start := time.Now()
			_, err := bus.Recv(10 * time.Millisecond)
			So(err, ShouldEqual, ErrTimeout)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 10*time.Millisecond)
		})

		Convey("A port failure surfaces instead of mapping to a timeout", func() {
			port := &fakePort{failWith: errors.New("device unplugged")}
			bus := &SlcanBus{path: "fake0", port: port}

			_, err := bus.Recv(time.Second)
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrTimeout), ShouldBeFalse)
			So(err.Error(), ShouldContainSubstring, "device unplugged")
		})
	})
}
