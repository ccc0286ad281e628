package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encode returns the wire bytes of f. Lengths precede the data they
// describe so the decoder can read each field in one exact-sized read.
func Encode(f Frame) ([]byte, error) {
	switch v := f.(type) {
	case Ident:
		return encodeIdent(v)
	case *Ident:
		return encodeIdent(*v)
	case Msg:
		return encodeMsg(v)
	case *Msg:
		return encodeMsg(*v)
	case Ping:
		return encodeStamp(FrameTypePing, v.LastActive), nil
	case *Ping:
		return encodeStamp(FrameTypePing, v.LastActive), nil
	case Pong:
		return encodeStamp(FrameTypePong, v.LastActive), nil
	case *Pong:
		return encodeStamp(FrameTypePong, v.LastActive), nil
	default:
		return nil, &FramingError{Field: "type", Err: ErrUnknownFrameType}
	}
}

// WriteFrame encodes f and writes it with a single Write call, so a frame
// is never split across writers that share w under a lock.
func WriteFrame(w io.Writer, f Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// ReadFrame decodes exactly one frame from r. Any short read is a
// FramingError; no partially filled frame is ever returned.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [1]byte
	if err := readFull(r, hdr[:], "type"); err != nil {
		return nil, err
	}

	switch FrameType(hdr[0]) {
	case FrameTypeIdent:
		return readIdent(r)
	case FrameTypeMsg:
		return readMsg(r)
	case FrameTypePing:
		ts, err := readUint32(r, "last active")
		if err != nil {
			return nil, err
		}
		return Ping{LastActive: ts}, nil
	case FrameTypePong:
		ts, err := readUint32(r, "last active")
		if err != nil {
			return nil, err
		}
		return Pong{LastActive: ts}, nil
	default:
		return nil, &FramingError{
			Field: "type",
			Err:   fmt.Errorf("%w: %d", ErrUnknownFrameType, hdr[0]),
		}
	}
}

func encodeIdent(f Ident) ([]byte, error) {
	if len(f.Name) > MaxNameLen {
		return nil, tooLong("name", len(f.Name), MaxNameLen)
	}
	buf := make([]byte, 0, 2+len(f.Name))
	buf = append(buf, byte(FrameTypeIdent), byte(len(f.Name)))
	buf = append(buf, f.Name...)
	return buf, nil
}

func encodeMsg(f Msg) ([]byte, error) {
	if len(f.Content) > MaxContentLen {
		return nil, tooLong("content", len(f.Content), MaxContentLen)
	}
	if len(f.Attachments) > MaxAttachments {
		return nil, tooLong("attachment count", len(f.Attachments), MaxAttachments)
	}

	size := 4 + len(f.Content)
	for _, a := range f.Attachments {
		if len(a.Name) > MaxNameLen {
			return nil, tooLong("attachment name", len(a.Name), MaxNameLen)
		}
		size += 5 + len(a.Name)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(FrameTypeMsg))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Content)))
	buf = append(buf, byte(len(f.Attachments)))
	for _, a := range f.Attachments {
		buf = append(buf, byte(len(a.Name)))
		buf = append(buf, a.Name...)
		buf = binary.BigEndian.AppendUint32(buf, a.Size)
	}
	buf = append(buf, f.Content...)
	return buf, nil
}

func encodeStamp(t FrameType, ts uint32) []byte {
	buf := make([]byte, 0, 5)
	buf = append(buf, byte(t))
	return binary.BigEndian.AppendUint32(buf, ts)
}

func readIdent(r io.Reader) (Frame, error) {
	name, err := readString8(r, "name")
	if err != nil {
		return nil, err
	}
	return Ident{Name: name}, nil
}

func readMsg(r io.Reader) (Frame, error) {
	var hdr [3]byte
	if err := readFull(r, hdr[:], "content length"); err != nil {
		return nil, err
	}
	contentLen := binary.BigEndian.Uint16(hdr[:2])
	count := int(hdr[2])

	var attachments []Attachment
	if count > 0 {
		attachments = make([]Attachment, count)
	}
	for i := range attachments {
		name, err := readString8(r, "attachment name")
		if err != nil {
			return nil, err
		}
		size, err := readUint32(r, "attachment size")
		if err != nil {
			return nil, err
		}
		attachments[i] = Attachment{Name: name, Size: size}
	}

	content := make([]byte, contentLen)
	if err := readFull(r, content, "content"); err != nil {
		return nil, err
	}
	return Msg{Content: string(content), Attachments: attachments}, nil
}

func readString8(r io.Reader, field string) (string, error) {
	var n [1]byte
	if err := readFull(r, n[:], field+" length"); err != nil {
		return "", err
	}
	buf := make([]byte, n[0])
	if err := readFull(r, buf, field); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readUint32(r io.Reader, field string) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:], field); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readFull(r io.Reader, buf []byte, field string) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return &FramingError{Field: field, Err: err}
	}
	return nil
}

func tooLong(field string, got, limit int) error {
	return &FramingError{
		Field: field,
		Err:   fmt.Errorf("%w: %d > %d", ErrFieldTooLong, got, limit),
	}
}
