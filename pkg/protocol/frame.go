// Package protocol implements the binary frame format spoken between the two
// chat peers.
package protocol

// FrameType is the 1-byte discriminant that starts every frame on the wire.
type FrameType uint8

const (
	FrameTypeIdent FrameType = iota
	FrameTypeMsg
	FrameTypePing
	FrameTypePong
)

// Wire limits imposed by the width of the length prefixes.
const (
	MaxNameLen     = 255
	MaxContentLen  = 65535
	MaxAttachments = 255
)

// String returns the string representation of FrameType
func (ft FrameType) String() string {
	switch ft {
	case FrameTypeIdent:
		return "IDENT"
	case FrameTypeMsg:
		return "MSG"
	case FrameTypePing:
		return "PING"
	case FrameTypePong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded unit of the wire protocol.
type Frame interface {
	Type() FrameType
}

// Ident introduces a peer by display name.
type Ident struct {
	Name string
}

// Attachment is the metadata of a file announced in a Msg. Only the
// metadata travels; attachment bodies are not transferred.
type Attachment struct {
	Name string
	Size uint32
}

// Msg is a chat message.
type Msg struct {
	Content     string
	Attachments []Attachment
}

// Ping is the liveness probe sent by the server role.
type Ping struct {
	LastActive uint32
}

// Pong answers a Ping.
type Pong struct {
	LastActive uint32
}

func (Ident) Type() FrameType { return FrameTypeIdent }
func (Msg) Type() FrameType   { return FrameTypeMsg }
func (Ping) Type() FrameType  { return FrameTypePing }
func (Pong) Type() FrameType  { return FrameTypePong }
