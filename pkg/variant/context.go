package variant

import "encoding/binary"

// Byte orders accepted by Context.
var (
	LE binary.ByteOrder = binary.LittleEndian
	BE binary.ByteOrder = binary.BigEndian
)

// Format selects the wire format.
type Format uint8

const (
	// FormatDBus is the primary, length-prefixed format.
	FormatDBus Format = iota
	// FormatGVariant is the compact, offset-framed format.
	FormatGVariant
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatDBus:
		return "dbus"
	case FormatGVariant:
		return "gvariant"
	default:
		return "unknown"
	}
}

// Context describes how a value is laid out: byte order, format and the
// absolute stream position the encoding starts at. Alignment is computed
// from that absolute position, so a body encoded after a message header must
// carry the header length as its position.
//
// A Context is immutable and safe to share.
type Context struct {
	order    binary.ByteOrder
	format   Format
	position int
}

// NewContext returns a Context for the given format.
func NewContext(format Format, order binary.ByteOrder, position int) Context {
	if order == nil {
		order = LE
	}
	return Context{order: order, format: format, position: position}
}

// NewDBusContext returns a Context for the primary format.
func NewDBusContext(order binary.ByteOrder, position int) Context {
	return NewContext(FormatDBus, order, position)
}

// NewGVariantContext returns a Context for the compact format. GVariant
// framing offsets are relative to container starts, so position should be a
// multiple of 8.
func NewGVariantContext(order binary.ByteOrder, position int) Context {
	return NewContext(FormatGVariant, order, position)
}

// ByteOrder returns the byte order. The zero Context is little-endian.
func (c Context) ByteOrder() binary.ByteOrder {
	if c.order == nil {
		return LE
	}
	return c.order
}

// Format returns the wire format.
func (c Context) Format() Format {
	return c.format
}

// Position returns the absolute position of the first byte.
func (c Context) Position() int {
	return c.position
}

func (c Context) withPosition(position int) Context {
	c.position = position
	return c
}
