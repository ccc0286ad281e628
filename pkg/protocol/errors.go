package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFrameType is returned for a discriminant outside 0..3.
	ErrUnknownFrameType = errors.New("unknown frame type")
	// ErrFieldTooLong is returned when a field does not fit its length prefix.
	ErrFieldTooLong = errors.New("field exceeds wire limit")
)

// FramingError reports a frame that could not be encoded or decoded.
// The connection it came from must be treated as dead.
type FramingError struct {
	Field string
	Err   error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("frame %s: %v", e.Field, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// TransportError reports a failure of the underlying stream: connection
// setup or a failed write.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConnectionLost reports whether err means the stream can no longer be
// used. A clean close by the peer and a socket error are not distinguished.
func IsConnectionLost(err error) bool {
	var fe *FramingError
	var te *TransportError
	return errors.As(err, &fe) || errors.As(err, &te)
}
