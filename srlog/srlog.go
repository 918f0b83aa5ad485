// Package srlog reads and writes NDJSON capture journals of CAN traffic.
// A journal is one header line followed by one record line per frame, so
// captures stream, append, and grep cleanly.
package srlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sr-robotics/srcore/canbus"
)

const (
	// Format is the magic carried in every journal header.
	Format = "srlog"
	// Version is the journal schema revision this package writes.
	Version = 1
)

var (
	ErrBadHeader = errors.New("not an srlog journal")
	ErrBadRecord = errors.New("malformed record")
)

// Header is the first line of a journal. Backend, Device and Bitrate
// describe the capture source and are informational only.
type Header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Backend string `json:"backend,omitempty"`
	Device  string `json:"device,omitempty"`
	Bitrate string `json:"bitrate,omitempty"`
}

// Record is one captured frame. ID is the display form of the identifier
// ("0x123" or "0x0000ABCD"); Data is uppercase compact hex.
type Record struct {
	TS   string `json:"ts"`
	ID   string `json:"id"`
	Ext  bool   `json:"ext"`
	Len  uint8  `json:"len"`
	Data string `json:"data"`
}

// RecordFromFrame snapshots a frame. Unstamped frames get the current
// wall clock so every record carries a usable timestamp.
func RecordFromFrame(f canbus.CanFrame) Record {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Record{
		TS:   ts.UTC().Format(time.RFC3339Nano),
		ID:   f.ID.String(),
		Ext:  f.ID.Extended(),
		Len:  f.Len,
		Data: fmt.Sprintf("%X", f.Payload()),
	}
}

// Frame rebuilds the CAN frame a record captured. The ext flag wins over
// the magnitude heuristic of ParseID so low extended ids survive the trip.
func (r Record) Frame() (canbus.CanFrame, error) {
	id, err := canbus.ParseID(r.ID)
	if err != nil {
		return canbus.CanFrame{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if r.Ext && !id.Extended() {
		if id, err = canbus.ExtendedID(id.Raw()); err != nil {
			return canbus.CanFrame{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
	}
	data, err := canbus.ParseHexCompact(r.Data)
	if err != nil {
		return canbus.CanFrame{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if len(data) != int(r.Len) {
		return canbus.CanFrame{}, fmt.Errorf("%w: len %d but %d data bytes", ErrBadRecord, r.Len, len(data))
	}
	f, err := canbus.NewFrame(id, data)
	if err != nil {
		return canbus.CanFrame{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	if ts, terr := time.Parse(time.RFC3339Nano, r.TS); terr == nil {
		f.Timestamp = ts
	}
	return f, nil
}

// Time parses the record timestamp.
func (r Record) Time() (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad ts %q", ErrBadRecord, r.TS)
	}
	return ts, nil
}

// Writer appends journal lines to an underlying stream. The header goes
// out on construction so a journal is well formed from the first byte.
type Writer struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewWriter writes the header and returns a record writer.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	hdr.Format = Format
	hdr.Version = Version
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return &Writer{w: bw, enc: enc}, nil
}

// WriteFrame appends one frame as a record line.
func (w *Writer) WriteFrame(f canbus.CanFrame) error {
	if err := w.enc.Encode(RecordFromFrame(f)); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Flush pushes buffered lines to the underlying stream.
func (w *Writer) Flush() error { return w.w.Flush() }

// Reader iterates the records of a journal.
type Reader struct {
	sc  *bufio.Scanner
	hdr Header
}

// NewReader consumes and validates the header line.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, fmt.Errorf("%w: empty stream", ErrBadHeader)
	}
	var hdr Header
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if hdr.Format != Format {
		return nil, fmt.Errorf("%w: format %q", ErrBadHeader, hdr.Format)
	}
	return &Reader{sc: sc, hdr: hdr}, nil
}

// Header returns the journal header.
func (r *Reader) Header() Header { return r.hdr }

// Next returns the next record, io.EOF at end of journal, or ErrBadRecord
// when a line does not parse. Callers may continue after a bad record;
// the scanner has already advanced past it.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrBadRecord, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}
