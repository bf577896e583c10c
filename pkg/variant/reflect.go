package variant

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/mash-protocol/busgo/pkg/signature"
)

var (
	variantType    = reflect.TypeOf(Variant{})
	objectPathType = reflect.TypeOf(ObjectPath(""))
	signatureType  = reflect.TypeOf(signature.Signature(""))
	unixFDType     = reflect.TypeOf(UnixFD(0))
	structType     = reflect.TypeOf(Struct(nil))
)

// structFields returns the indices of the fields of t that take part in
// encoding: exported and not tagged `bus:"-"`.
func structFields(t reflect.Type) []int {
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("bus") == "-" {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// isGoStruct reports whether t is a plain Go struct usable as a bus struct.
func isGoStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != variantType
}

// fieldValues returns the members of a struct-like value: the encodable
// fields of a Go struct or the elements of a Struct or []any.
func fieldValues(v reflect.Value) ([]reflect.Value, bool) {
	t := v.Type()
	switch {
	case isGoStruct(t):
		idx := structFields(t)
		out := make([]reflect.Value, len(idx))
		for i, fi := range idx {
			out[i] = v.Field(fi)
		}
		return out, true
	case (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.Interface:
		out := make([]reflect.Value, v.Len())
		for i := range out {
			out[i] = v.Index(i)
		}
		return out, true
	default:
		return nil, false
	}
}

// indirect follows pointers and interfaces down to a concrete value.
func indirect(sig signature.Signature, v reflect.Value) (reflect.Value, error) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, fmt.Errorf("%w: nil value for %q", ErrIncorrectValue, sig)
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, fmt.Errorf("%w: nil value for %q", ErrIncorrectValue, sig)
	}
	return v, nil
}

// fixedBits extracts a fixed-size basic value as raw bits, checking that the
// Go kind fits the type code.
func fixedBits(sig signature.Signature, v reflect.Value) (uint64, error) {
	k := v.Kind()
	switch sig.First() {
	case signature.Byte:
		if k == reflect.Uint8 {
			return v.Uint(), nil
		}
	case signature.Bool:
		if k == reflect.Bool {
			if v.Bool() {
				return 1, nil
			}
			return 0, nil
		}
	case signature.Int16:
		if k == reflect.Int16 {
			return uint64(v.Int()), nil
		}
	case signature.Uint16:
		if k == reflect.Uint16 {
			return v.Uint(), nil
		}
	case signature.Int32:
		if k == reflect.Int32 {
			return uint64(v.Int()), nil
		}
	case signature.Uint32:
		if k == reflect.Uint32 {
			return v.Uint(), nil
		}
	case signature.Int64:
		if k == reflect.Int64 || k == reflect.Int {
			return uint64(v.Int()), nil
		}
	case signature.Uint64:
		if k == reflect.Uint64 || k == reflect.Uint {
			return v.Uint(), nil
		}
	case signature.Double:
		if k == reflect.Float64 || k == reflect.Float32 {
			return math.Float64bits(v.Float()), nil
		}
	}
	return 0, mismatch(sig, v.Type())
}

// setFixed stores raw bits decoded for sig into v.
func setFixed(sig signature.Signature, v reflect.Value, bits uint64) error {
	k := v.Kind()
	switch sig.First() {
	case signature.Byte:
		if k == reflect.Uint8 {
			v.SetUint(bits)
			return nil
		}
	case signature.Bool:
		if k == reflect.Bool {
			v.SetBool(bits == 1)
			return nil
		}
	case signature.Int16:
		if k == reflect.Int16 {
			v.SetInt(int64(int16(bits)))
			return nil
		}
	case signature.Uint16:
		if k == reflect.Uint16 {
			v.SetUint(bits)
			return nil
		}
	case signature.Int32:
		if k == reflect.Int32 {
			v.SetInt(int64(int32(bits)))
			return nil
		}
	case signature.Uint32:
		if k == reflect.Uint32 {
			v.SetUint(bits)
			return nil
		}
	case signature.Int64:
		if k == reflect.Int64 || k == reflect.Int {
			v.SetInt(int64(bits))
			return nil
		}
	case signature.Uint64:
		if k == reflect.Uint64 || k == reflect.Uint {
			v.SetUint(bits)
			return nil
		}
	case signature.Double:
		if k == reflect.Float64 || k == reflect.Float32 {
			v.SetFloat(math.Float64frombits(bits))
			return nil
		}
	}
	return mismatch(sig, v.Type())
}

// stringValue extracts and validates the text of an s, o or g value.
func stringValue(sig signature.Signature, v reflect.Value) (string, error) {
	if v.Kind() != reflect.String {
		return "", mismatch(sig, v.Type())
	}
	s := v.String()
	return s, checkString(sig, s)
}

func checkString(sig signature.Signature, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid UTF-8 in %q value", ErrIncorrectValue, sig)
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return fmt.Errorf("%w: NUL byte in %q value", ErrIncorrectValue, sig)
		}
	}
	switch sig.First() {
	case signature.ObjectPath:
		if !ObjectPath(s).IsValid() {
			return fmt.Errorf("%w: invalid object path %q", ErrIncorrectValue, s)
		}
	case signature.Sig:
		if _, err := signature.Parse(s); err != nil {
			return err
		}
	}
	return nil
}

// setString stores decoded text into v.
func setString(sig signature.Signature, v reflect.Value, s string) error {
	if v.Kind() != reflect.String {
		return mismatch(sig, v.Type())
	}
	v.SetString(s)
	return nil
}

// naturalType is the Go type a value of sig decodes to when the target is an
// interface.
func naturalType(sig signature.Signature) reflect.Type {
	switch sig.First() {
	case signature.Byte:
		return reflect.TypeOf(uint8(0))
	case signature.Bool:
		return reflect.TypeOf(false)
	case signature.Int16:
		return reflect.TypeOf(int16(0))
	case signature.Uint16:
		return reflect.TypeOf(uint16(0))
	case signature.Int32:
		return reflect.TypeOf(int32(0))
	case signature.Uint32:
		return reflect.TypeOf(uint32(0))
	case signature.Int64:
		return reflect.TypeOf(int64(0))
	case signature.Uint64:
		return reflect.TypeOf(uint64(0))
	case signature.Double:
		return reflect.TypeOf(float64(0))
	case signature.String:
		return reflect.TypeOf("")
	case signature.ObjectPath:
		return objectPathType
	case signature.Sig:
		return signatureType
	case signature.UnixFD:
		return unixFDType
	case signature.Variant:
		return variantType
	case signature.Array:
		if sig.IsDict() {
			kv := sig.Fields()
			return reflect.MapOf(naturalType(kv[0]), naturalType(kv[1]))
		}
		return reflect.SliceOf(naturalType(sig.Elem()))
	default:
		return structType
	}
}

// newNatural allocates a settable zero value of sig's natural type.
func newNatural(sig signature.Signature) reflect.Value {
	return reflect.New(naturalType(sig)).Elem()
}

// assignNatural stores a decoded natural value into an interface target.
func assignNatural(sig signature.Signature, target, nv reflect.Value) error {
	if !nv.Type().AssignableTo(target.Type()) {
		return mismatch(sig, target.Type())
	}
	target.Set(nv)
	return nil
}

// sortKeys orders map keys of a basic kind.
func sortKeys(keys []reflect.Value) {
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		switch a.Kind() {
		case reflect.String:
			return strings.Compare(a.String(), b.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.Bool:
			switch {
			case a.Bool() == b.Bool():
				return 0
			case b.Bool():
				return -1
			default:
				return 1
			}
		}
		return 0
	})
}
