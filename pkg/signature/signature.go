package signature

import "strings"

// Code is a single type code of the signature grammar.
type Code byte

// Type codes.
const (
	Byte       Code = 'y'
	Bool       Code = 'b'
	Int16      Code = 'n'
	Uint16     Code = 'q'
	Int32      Code = 'i'
	Uint32     Code = 'u'
	Int64      Code = 'x'
	Uint64     Code = 't'
	Double     Code = 'd'
	String     Code = 's'
	ObjectPath Code = 'o'
	Sig        Code = 'g'
	UnixFD     Code = 'h'
	Variant    Code = 'v'

	Array          Code = 'a'
	StructStart    Code = '('
	StructEnd      Code = ')'
	DictEntryStart Code = '{'
	DictEntryEnd   Code = '}'
)

// Protocol limits.
const (
	// MaxLength is the maximum length of a signature in bytes.
	MaxLength = 255

	// MaxArrayDepth is the maximum nesting of arrays.
	MaxArrayDepth = 32

	// MaxStructDepth is the maximum nesting of structs and dict-entries.
	MaxStructDepth = 32

	// MaxVariantDepth is the maximum nesting of variants.
	MaxVariantDepth = 64

	// MaxTotalDepth is the maximum combined nesting of all containers.
	MaxTotalDepth = 64
)

// IsBasic reports whether c is a basic (non-container) type code.
// Only basic types may be used as dictionary keys.
func (c Code) IsBasic() bool {
	switch c {
	case Byte, Bool, Int16, Uint16, Int32, Uint32, Int64, Uint64,
		Double, String, ObjectPath, Sig, UnixFD:
		return true
	default:
		return false
	}
}

// IsStringLike reports whether values of c are encoded as text.
func (c Code) IsStringLike() bool {
	return c == String || c == ObjectPath || c == Sig
}

// String returns the code as a one-character string.
func (c Code) String() string {
	return string(rune(c))
}

// Signature is a validated type signature. The zero value is the empty
// signature, which describes no value at all.
//
// Values of type Signature obtained from Parse or MustParse are always
// well-formed; the accessor methods assume this and do not re-validate.
type Signature string

// Empty is the empty signature.
const Empty Signature = ""

// String returns the signature text.
func (s Signature) String() string {
	return string(s)
}

// IsEmpty reports whether s describes no value.
func (s Signature) IsEmpty() bool {
	return len(s) == 0
}

// First returns the code of the first complete type, or 0 for the empty
// signature.
func (s Signature) First() Code {
	if len(s) == 0 {
		return 0
	}
	return Code(s[0])
}

// IsSingle reports whether s is exactly one complete type.
func (s Signature) IsSingle() bool {
	if len(s) == 0 {
		return false
	}
	return completeTypeEnd(string(s), 0) == len(s)
}

// IsDict reports whether s is an array of dict-entries.
func (s Signature) IsDict() bool {
	return len(s) > 1 && s[0] == byte(Array) && s[1] == byte(DictEntryStart)
}

// Split returns the complete types s is made of, in order.
func (s Signature) Split() []Signature {
	var out []Signature
	for pos := 0; pos < len(s); {
		end := completeTypeEnd(string(s), pos)
		out = append(out, s[pos:end])
		pos = end
	}
	return out
}

// Elem returns the element signature of an array signature.
func (s Signature) Elem() Signature {
	if s.First() != Array {
		return Empty
	}
	return s[1:]
}

// Fields returns the member signatures of a struct or dict-entry signature,
// or of an array of dict-entries (key and value).
func (s Signature) Fields() []Signature {
	switch s.First() {
	case StructStart, DictEntryStart:
		return s[1 : len(s)-1].Split()
	case Array:
		if s.IsDict() {
			return s[2 : len(s)-1].Split()
		}
	}
	return nil
}

// Struct wraps the concatenation of fields into a struct signature.
func Struct(fields ...Signature) Signature {
	var b strings.Builder
	b.WriteByte(byte(StructStart))
	for _, f := range fields {
		b.WriteString(string(f))
	}
	b.WriteByte(byte(StructEnd))
	return Signature(b.String())
}

// ArrayOf prefixes elem with the array marker.
func ArrayOf(elem Signature) Signature {
	return Signature(string(Array) + string(elem))
}

// DictOf builds the dictionary signature a{KV}.
func DictOf(key, value Signature) Signature {
	return Signature("a{" + string(key) + string(value) + "}")
}

// Concat joins complete types into one (possibly multi-type) signature.
func Concat(parts ...Signature) Signature {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(string(p))
	}
	return Signature(b.String())
}

// completeTypeEnd returns the index just past the complete type starting at
// pos. s must be well-formed.
func completeTypeEnd(s string, pos int) int {
	switch Code(s[pos]) {
	case Array:
		return completeTypeEnd(s, pos+1)
	case StructStart, DictEntryStart:
		depth := 0
		for i := pos; i < len(s); i++ {
			switch Code(s[i]) {
			case StructStart, DictEntryStart:
				depth++
			case StructEnd, DictEntryEnd:
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}
		return len(s)
	default:
		return pos + 1
	}
}
