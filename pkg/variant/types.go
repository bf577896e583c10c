package variant

import (
	"fmt"
	"strings"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// ObjectPath is a value of type 'o'.
type ObjectPath string

// IsValid reports whether p is a well-formed object path: "/" or a sequence
// of "/"-separated non-empty elements of [A-Za-z0-9_].
func (p ObjectPath) IsValid() bool {
	s := string(p)
	if s == "/" {
		return true
	}
	if len(s) < 2 || s[0] != '/' || s[len(s)-1] == '/' {
		return false
	}
	for _, elem := range strings.Split(s[1:], "/") {
		if elem == "" {
			return false
		}
		for i := 0; i < len(elem); i++ {
			c := elem[i]
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
				return false
			}
		}
	}
	return true
}

// UnixFD is a value of type 'h': a raw descriptor when encoding, the
// descriptor from the message's OwnedFds when decoding. Decoded descriptors
// stay owned by the table.
type UnixFD int

// Struct is a struct value given as an ordered list of fields. Decoding a
// struct into an any yields a Struct.
type Struct []any

// Variant is a self-describing value of type 'v'.
type Variant struct {
	sig   signature.Signature
	value any
}

// NewVariant wraps v, deriving its signature.
func NewVariant(v any) (Variant, error) {
	sig, err := SignatureOf(v)
	if err != nil {
		return Variant{}, err
	}
	return Variant{sig: sig, value: v}, nil
}

// MakeVariant is like NewVariant but panics if v has no wire representation.
func MakeVariant(v any) Variant {
	out, err := NewVariant(v)
	if err != nil {
		panic(err)
	}
	return out
}

// MakeVariantWithSignature wraps v with an explicit signature, for values
// whose Go type is ambiguous (for example Struct for an array element type).
// sig must be a single complete type.
func MakeVariantWithSignature(v any, sig signature.Signature) Variant {
	return Variant{sig: sig, value: v}
}

// Signature returns the signature of the wrapped value.
func (v Variant) Signature() signature.Signature {
	return v.sig
}

// Value returns the wrapped value.
func (v Variant) Value() any {
	return v.value
}

// String formats the variant the way gdbus prints values: @sig value.
func (v Variant) String() string {
	return fmt.Sprintf("@%s %v", v.sig, v.value)
}
