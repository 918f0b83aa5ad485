package canbus

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goburrow/serial"
)

const (
	slcanBaudRate = 115200
	// slcanReadCycle bounds one port read, so a Recv deadline is honored to
	// within this much.
	slcanReadCycle = 20 * time.Millisecond
)

// Bitrate is an SLCAN bus bitrate, mapped onto the adapter's S<n> codes.
type Bitrate int

const (
	Bitrate10k Bitrate = iota // S0
	Bitrate20k                // S1
	Bitrate50k                // S2
	Bitrate100k
	Bitrate125k
	Bitrate250k
	Bitrate500k
	Bitrate800k
	Bitrate1M
)

var bitrateNames = map[Bitrate]string{
	Bitrate10k:  "10k",
	Bitrate20k:  "20k",
	Bitrate50k:  "50k",
	Bitrate100k: "100k",
	Bitrate125k: "125k",
	Bitrate250k: "250k",
	Bitrate500k: "500k",
	Bitrate800k: "800k",
	Bitrate1M:   "1m",
}

func (b Bitrate) String() string { return bitrateNames[b] }

// Code is the digit sent in the S command.
func (b Bitrate) Code() byte { return byte('0' + int(b)) }

// ParseBitrate resolves names like "500k" or "1m".
func ParseBitrate(s string) (Bitrate, error) {
	for b, name := range bitrateNames {
		if strings.EqualFold(s, name) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown bitrate %q", s)
}

// SlcanBus speaks the SLCAN text protocol over a serial port at 115200 baud.
// The handle has exclusive ownership of the port; Close releases it.
type SlcanBus struct {
	path string
	port serial.Port
	acc  []byte // partial line carried across reads
}

// OpenSlcan opens the serial port and runs the session opener:
// close channel, set bitrate, open channel.
func OpenSlcan(path string, bitrate Bitrate) (*SlcanBus, error) {
	port, err := serial.Open(&serial.Config{
		Address:  path,
		BaudRate: slcanBaudRate,
		Timeout:  slcanReadCycle,
	})
	if err != nil {
		if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	s := &SlcanBus{path: path, port: port}
	// Session opener; adapters tolerate a failed close on a fresh channel.
	_ = s.writeCmd([]byte("C\r"))
	_ = s.writeCmd([]byte{'S', bitrate.Code(), '\r'})
	_ = s.writeCmd([]byte("O\r"))
	return s, nil
}

// ListSlcan enumerates host serial ports. USB adapters surface under the
// slcan-serial driver tag, remaining ports under plain serial.
// goburrow/serial has no enumeration of its own, so the device tree is
// globbed directly.
func ListSlcan() ([]BusInfo, error) {
	usbPatterns := []string{
		"/dev/ttyUSB*", "/dev/ttyACM*",
		"/dev/cu.usbserial*", "/dev/cu.usbmodem*",
	}
	otherPatterns := []string{"/dev/ttyS*", "/dev/cu.*"}

	seen := make(map[string]bool)
	var out []BusInfo
	for _, p := range usbPatterns {
		matches, _ := filepath.Glob(p)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, BusInfo{Name: m, Driver: "slcan-serial"})
			}
		}
	}
	for _, p := range otherPatterns {
		matches, _ := filepath.Glob(p)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, BusInfo{Name: m, Driver: "serial"})
			}
		}
	}
	return out, nil
}

func (s *SlcanBus) writeCmd(cmd []byte) error {
	if _, err := s.port.Write(cmd); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

func (s *SlcanBus) SetFilters(filters []CanFilter) error {
	return fmt.Errorf("%w: slcan filters are not standardized", ErrUnsupported)
}

func (s *SlcanBus) Send(frame CanFrame) error {
	line, err := EncodeSlcanFrame(frame)
	if err != nil {
		return err
	}
	if _, err := s.port.Write(line); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Recv accumulates serial bytes until a carriage return completes a line,
// then parses it into a frame stamped with the wall clock. Partial lines stay
// buffered across calls. The deadline is checked before every port read, so a
// zero timeout returns a buffered frame or ErrTimeout without touching the
// port; positive timeouts are honored to within one read cycle. Blocking
// waits forever.
func (s *SlcanBus) Recv(timeout time.Duration) (CanFrame, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	buf := make([]byte, 128)
	for {
		if f, ok, err := s.takeLine(); ok {
			return f, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return CanFrame{}, ErrTimeout
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			s.acc = append(s.acc, buf[:n]...)
		}
		if err != nil {
			if isSerialTimeout(err) {
				continue
			}
			return CanFrame{}, fmt.Errorf("reading port: %w", err)
		}
	}
}

// takeLine pops one completed line off the accumulator, if any.
func (s *SlcanBus) takeLine() (CanFrame, bool, error) {
	i := bytes.IndexByte(s.acc, '\r')
	if i < 0 {
		return CanFrame{}, false, nil
	}
	line := s.acc[:i]
	s.acc = append(s.acc[:0], s.acc[i+1:]...)
	if len(line) == 0 {
		return s.takeLine()
	}
	f, err := ParseSlcanFrame(line)
	return f, true, err
}

func (s *SlcanBus) Close() error {
	_ = s.writeCmd([]byte("C\r"))
	return s.port.Close()
}

func isSerialTimeout(err error) bool {
	if errors.Is(err, serial.ErrTimeout) {
		return true
	}
	return strings.Contains(err.Error(), "timed out")
}

// EncodeSlcanFrame renders a data frame as an ASCII SLCAN line.
// Standard frames use t<iii><l><data>, extended T<iiiiiiii><l><data>,
// both terminated by a carriage return. RTR frames are refused; the host
// side of this protocol only ever sends data frames.
func EncodeSlcanFrame(frame CanFrame) ([]byte, error) {
	if frame.RTR {
		return nil, fmt.Errorf("%w: RTR not supported by encoder", ErrInvalidFrame)
	}
	if frame.Len > MaxDataLen {
		return nil, fmt.Errorf("%w: dlc %d", ErrInvalidFrame, frame.Len)
	}
	var out bytes.Buffer
	if frame.ID.Extended() {
		fmt.Fprintf(&out, "T%08X", frame.ID.Raw())
	} else {
		fmt.Fprintf(&out, "t%03X", frame.ID.Raw())
	}
	out.WriteByte('0' + frame.Len)
	for _, b := range frame.Payload() {
		fmt.Fprintf(&out, "%02X", b)
	}
	out.WriteByte('\r')
	return out.Bytes(), nil
}

// ParseSlcanFrame classifies a line (without terminator) by its first byte
// and hex-decodes it. r/R remote lines are accepted on the receive side.
// The frame is stamped with the reader's wall clock.
func ParseSlcanFrame(line []byte) (CanFrame, error) {
	if len(line) == 0 {
		return CanFrame{}, fmt.Errorf("%w: empty line", ErrInvalidFrame)
	}
	var (
		idLen    int
		extended bool
	)
	switch line[0] {
	case 't', 'r':
		idLen = 3
	case 'T', 'R':
		idLen = 8
		extended = true
	default:
		return CanFrame{}, fmt.Errorf("%w: unknown header %q", ErrInvalidFrame, line[0])
	}
	if len(line) < 1+idLen+1 {
		return CanFrame{}, fmt.Errorf("%w: short line", ErrInvalidFrame)
	}

	rawID, err := parseHexField(line[1 : 1+idLen])
	if err != nil {
		return CanFrame{}, fmt.Errorf("%w: bad id", ErrInvalidFrame)
	}
	var id CanID
	if extended {
		id, err = ExtendedID(rawID)
	} else {
		id, err = StandardID(rawID)
	}
	if err != nil {
		return CanFrame{}, fmt.Errorf("%w: id out of range", ErrInvalidFrame)
	}

	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > MaxDataLen {
		return CanFrame{}, fmt.Errorf("%w: dlc %d", ErrInvalidFrame, dlc)
	}
	f := CanFrame{ID: id, Len: uint8(dlc), RTR: line[0] == 'r' || line[0] == 'R'}
	pos := 1 + idLen + 1
	for i := 0; i < dlc; i++ {
		if pos+2 > len(line) {
			return CanFrame{}, fmt.Errorf("%w: short data", ErrInvalidFrame)
		}
		b, err := parseHexField(line[pos : pos+2])
		if err != nil {
			return CanFrame{}, fmt.Errorf("%w: bad data byte", ErrInvalidFrame)
		}
		f.Data[i] = byte(b)
		pos += 2
	}
	f.Timestamp = time.Now().UTC()
	return f, nil
}

func parseHexField(b []byte) (uint32, error) {
	var v uint32
	for _, c := range b {
		var d uint32
		switch {
		case c >= '0' && c <= '9':
			d = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint32(c-'A') + 10
		default:
			return 0, fmt.Errorf("non-hex byte %q", c)
		}
		v = v<<4 | d
	}
	return v, nil
}
