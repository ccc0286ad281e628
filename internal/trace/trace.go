// Package trace records every frame crossing the connection to a file for
// later inspection with peertrace.
//
// A trace is a sequence of length-delimited protobuf records:
//
//	1: unix nanoseconds (varint)
//	2: direction (varint)
//	3: frame type (varint)
//	4: encoded frame (bytes)
package trace

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

const (
	fieldTime      protowire.Number = 1
	fieldDirection protowire.Number = 2
	fieldType      protowire.Number = 3
	fieldFrame     protowire.Number = 4
)

// maxRecordLen bounds a single record; the largest frame is well below it.
const maxRecordLen = 1 << 20

// ErrMalformedRecord is returned by Reader.Next for records it cannot parse.
var ErrMalformedRecord = errors.New("malformed trace record")

// Direction tells whether a frame was sent or received.
type Direction uint8

const (
	Sent Direction = iota + 1
	Received
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return "unknown"
	}
}

// Record is one traced frame.
type Record struct {
	Time      time.Time
	Direction Direction
	Type      protocol.FrameType
	Frame     protocol.Frame
}

// Recorder appends records to a writer. A nil *Recorder discards everything.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// NewRecorder writes records to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w, now: time.Now}
}

// Create truncates path and records to it.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Record appends f with the current time.
func (r *Recorder) Record(dir Direction, f protocol.Frame) error {
	if r == nil {
		return nil
	}
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	var rec []byte
	rec = protowire.AppendTag(rec, fieldTime, protowire.VarintType)
	rec = protowire.AppendVarint(rec, uint64(r.now().UnixNano()))
	rec = protowire.AppendTag(rec, fieldDirection, protowire.VarintType)
	rec = protowire.AppendVarint(rec, uint64(dir))
	rec = protowire.AppendTag(rec, fieldType, protowire.VarintType)
	rec = protowire.AppendVarint(rec, uint64(f.Type()))
	rec = protowire.AppendTag(rec, fieldFrame, protowire.BytesType)
	rec = protowire.AppendBytes(rec, data)

	out := protowire.AppendBytes(nil, rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(out); err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	return nil
}

// Close closes the underlying file when the recorder owns one.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Reader reads records written by a Recorder.
type Reader struct {
	r *bufio.Reader
}

// NewReader reads records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF at a clean end of the trace.
func (r *Reader) Next() (Record, error) {
	n, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if n > maxRecordLen {
		return Record{}, fmt.Errorf("%w: record length %d", ErrMalformedRecord, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return parseRecord(buf)
}

func parseRecord(b []byte) (Record, error) {
	var (
		rec      Record
		hasFrame bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			rec.Time = time.Unix(0, int64(v))
			b = b[n:]
		case num == fieldDirection && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			rec.Direction = Direction(v)
			b = b[n:]
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			rec.Type = protocol.FrameType(v)
			b = b[n:]
		case num == fieldFrame && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			f, err := protocol.ReadFrame(bytes.NewReader(v))
			if err != nil {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
			}
			rec.Frame = f
			hasFrame = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !hasFrame {
		return Record{}, fmt.Errorf("%w: no frame", ErrMalformedRecord)
	}
	return rec, nil
}
