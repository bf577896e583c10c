package log

import "time"

// MaxLogDataSize is the maximum number of payload bytes kept in a frame
// event. Larger payloads are truncated to keep log files small.
const MaxLogDataSize = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side authenticates or accepts.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// Peer describes the remote side, e.g. "uid=1000".
	Peer string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	AuthLine    *AuthLineEvent    `cbor:"11,keyasint,omitempty"` // Auth layer
	Value       *ValueEvent       `cbor:"12,keyasint,omitempty"` // Wire layer
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"` // Handshake/connection state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer (raw bytes and descriptors).
	LayerTransport Layer = 0
	// LayerAuth is the line-based authentication handshake.
	LayerAuth Layer = 1
	// LayerWire is the value encoding layer.
	LayerWire Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerAuth:
		return "AUTH"
	case LayerWire:
		return "WIRE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates data on the wire (a frame, a line, a value).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which side of the handshake the local endpoint plays.
type Role uint8

const (
	// RoleClient indicates the authenticating side.
	RoleClient Role = 0
	// RoleServer indicates the accepting side.
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bytes moved by the transport.
type FrameEvent struct {
	// Size is the payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw payload (may be truncated for large payloads).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// NumFds is the number of descriptors passed alongside the bytes.
	NumFds int `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent builds a frame event, truncating data to MaxLogDataSize.
func NewFrameEvent(data []byte, numFds int) *FrameEvent {
	ev := &FrameEvent{Size: len(data), NumFds: numFds, Data: data}
	if len(data) > MaxLogDataSize {
		ev.Data = data[:MaxLogDataSize]
		ev.Truncated = true
	}
	return ev
}

// AuthLineEvent captures one line of the authentication handshake.
type AuthLineEvent struct {
	// Command is the first word of the line (AUTH, OK, BEGIN, ...).
	Command string `cbor:"1,keyasint"`

	// Line is the full line without the CRLF terminator.
	Line string `cbor:"2,keyasint,omitempty"`
}

// ValueEvent summarizes a value encoded or decoded at the wire layer.
type ValueEvent struct {
	// Signature is the type signature of the value.
	Signature string `cbor:"1,keyasint"`

	// Format is the wire format name ("dbus" or "gvariant").
	Format string `cbor:"2,keyasint"`

	// ByteOrder is "LE" or "BE".
	ByteOrder string `cbor:"3,keyasint"`

	// Size is the encoded size in bytes.
	Size int `cbor:"4,keyasint"`

	// NumFds is the number of descriptors the value refers to.
	NumFds int `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures handshake and connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityHandshake indicates a handshake step change.
	StateEntityHandshake StateEntity = 0
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityHandshake:
		return "HANDSHAKE"
	case StateEntityConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
