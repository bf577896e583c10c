package variant

import "github.com/mash-protocol/busgo/pkg/signature"

// PaddingFor returns the number of zero bytes needed after position so that
// the next byte is a multiple of alignment. Alignment is a power of two.
func PaddingFor(position, alignment int) int {
	if alignment <= 1 {
		return 0
	}
	return -position & (alignment - 1)
}

// Alignment returns the alignment of the first complete type of sig in the
// given format. The empty signature aligns to 1.
func Alignment(sig signature.Signature, f Format) int {
	if f == FormatGVariant {
		return gvariantAlignment(sig)
	}
	return dbusAlignment(sig.First())
}

func dbusAlignment(c signature.Code) int {
	switch c {
	case signature.Int16, signature.Uint16:
		return 2
	case signature.Bool, signature.Int32, signature.Uint32, signature.UnixFD,
		signature.String, signature.ObjectPath, signature.Array:
		return 4
	case signature.Int64, signature.Uint64, signature.Double,
		signature.StructStart, signature.DictEntryStart:
		return 8
	default:
		// y, g, v
		return 1
	}
}

func gvariantAlignment(sig signature.Signature) int {
	switch c := sig.First(); c {
	case signature.Int16, signature.Uint16:
		return 2
	case signature.Int32, signature.Uint32, signature.UnixFD:
		return 4
	case signature.Int64, signature.Uint64, signature.Double, signature.Variant:
		return 8
	case signature.Array:
		return gvariantAlignment(sig.Elem())
	case signature.StructStart, signature.DictEntryStart:
		align := 1
		for _, f := range sig.Fields() {
			if a := gvariantAlignment(f); a > align {
				align = a
			}
		}
		return align
	default:
		// y, b, s, o, g
		return 1
	}
}

// gvariantFixedSize returns the encoded size of sig when every value of that
// type has the same size, as GVariant uses to skip framing offsets.
func gvariantFixedSize(sig signature.Signature) (int, bool) {
	switch sig.First() {
	case signature.Byte, signature.Bool:
		return 1, true
	case signature.Int16, signature.Uint16:
		return 2, true
	case signature.Int32, signature.Uint32, signature.UnixFD:
		return 4, true
	case signature.Int64, signature.Uint64, signature.Double:
		return 8, true
	case signature.StructStart, signature.DictEntryStart:
		pos := 0
		for _, f := range sig.Fields() {
			size, ok := gvariantFixedSize(f)
			if !ok {
				return 0, false
			}
			pos += PaddingFor(pos, gvariantAlignment(f)) + size
		}
		return pos + PaddingFor(pos, gvariantAlignment(sig)), true
	default:
		return 0, false
	}
}

// gvariantOffsetSize returns the width of framing offsets for a container
// whose total size (including the offsets) is size.
func gvariantOffsetSize(size int) int {
	switch {
	case size == 0:
		return 0
	case size <= 0xff:
		return 1
	case size <= 0xffff:
		return 2
	case uint64(size) <= 0xffffffff:
		return 4
	default:
		return 8
	}
}

// gvariantFramedSize picks the smallest offset width for a container body of
// bodyLen bytes followed by n offsets.
func gvariantFramedSize(bodyLen, n int) int {
	if n == 0 {
		return 0
	}
	for _, width := range []int{1, 2, 4} {
		if gvariantOffsetSize(bodyLen+n*width) <= width {
			return width
		}
	}
	return 8
}
