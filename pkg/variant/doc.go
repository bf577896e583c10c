// Package variant marshals Go values to and from the bus wire formats.
//
// Two formats are supported, selected through the Context:
//
//   - FormatDBus: the primary format. Values are aligned to their natural
//     size, arrays and strings carry leading length prefixes, structs are
//     8-byte aligned.
//   - FormatGVariant: the compact format. Variable-length members are framed
//     by trailing offset tables instead of leading length prefixes.
//
// Both formats share the signature grammar (package signature), the
// alignment helper PaddingFor and the container depth limits, but each is
// implemented by its own encoder and decoder.
//
// # Go type mapping
//
//	bool             b        uint8            y
//	int16            n        uint16           q
//	int32            i        uint32           u
//	int64, int       x        uint64, uint     t
//	float64, float32 d        string           s
//	ObjectPath       o        signature.Signature  g
//	UnixFD           h        Variant          v
//	[]T, [N]T        aT       map[K]V          a{KV}
//	struct, Struct   (…)
//
// Struct fields are encoded in declaration order; unexported fields and
// fields tagged `bus:"-"` are skipped.
//
// # File descriptors
//
// Descriptors never appear on the wire. Encoding a UnixFD duplicates it into
// an OwnedFds table and writes the table index instead; two references to
// the same descriptor share one slot. The caller owns the returned table and
// must keep it open until the transport has sent the bytes that refer to it.
// Closing it earlier invalidates a message that is already considered sent.
package variant
