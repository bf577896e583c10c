package variant

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// SignatureOf derives the signature of a Go value.
//
// Most types map statically (see the package documentation). Values whose
// type does not fix the signature are inspected: a Struct yields the
// signatures of its elements, and slices or maps with interface elements
// take the signature of their elements, which must agree. An empty
// container of interface elements has no signature.
func SignatureOf(v any) (signature.Signature, error) {
	var b strings.Builder
	if err := writeSignatureOfValue(&b, reflect.ValueOf(v)); err != nil {
		return signature.Empty, err
	}
	return signature.Parse(b.String())
}

// SignatureOfType derives the signature of a Go type.
func SignatureOfType(t reflect.Type) (signature.Signature, error) {
	var b strings.Builder
	if err := writeSignatureOfType(&b, t); err != nil {
		return signature.Empty, err
	}
	return signature.Parse(b.String())
}

func writeSignatureOfValue(b *strings.Builder, v reflect.Value) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	t := v.Type()
	switch {
	case t == variantType:
		b.WriteByte(byte(signature.Variant))
		return nil
	case t == structType:
		if v.Len() == 0 {
			return fmt.Errorf("%w: empty Struct", ErrUnsupportedType)
		}
		b.WriteByte(byte(signature.StructStart))
		for i := 0; i < v.Len(); i++ {
			if err := writeSignatureOfValue(b, v.Index(i)); err != nil {
				return err
			}
		}
		b.WriteByte(byte(signature.StructEnd))
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return fmt.Errorf("%w: nil %v", ErrUnsupportedType, t)
		}
		return writeSignatureOfValue(b, v.Elem())

	case reflect.Slice, reflect.Array:
		if typeHasSignature(t) {
			return writeSignatureOfType(b, t)
		}
		elem, err := commonSignature(v.Len(), v.Index)
		if err != nil {
			return fmt.Errorf("%v: %w", t, err)
		}
		b.WriteByte(byte(signature.Array))
		b.WriteString(elem)
		return nil

	case reflect.Map:
		if typeHasSignature(t) {
			return writeSignatureOfType(b, t)
		}
		var key strings.Builder
		if err := writeSignatureOfType(&key, t.Key()); err != nil {
			return err
		}
		if !signature.Code(key.String()[0]).IsBasic() || key.Len() != 1 {
			return fmt.Errorf("%w: map key %v", ErrUnsupportedType, t.Key())
		}
		iter := v.MapRange()
		var values []reflect.Value
		for iter.Next() {
			values = append(values, iter.Value())
		}
		elem, err := commonSignature(len(values), func(i int) reflect.Value { return values[i] })
		if err != nil {
			return fmt.Errorf("%v: %w", t, err)
		}
		b.WriteString("a{")
		b.WriteString(key.String())
		b.WriteString(elem)
		b.WriteByte('}')
		return nil

	case reflect.Struct:
		idx := structFields(t)
		if len(idx) == 0 {
			return fmt.Errorf("%w: struct %v has no encodable fields", ErrUnsupportedType, t)
		}
		b.WriteByte(byte(signature.StructStart))
		for _, i := range idx {
			if err := writeSignatureOfValue(b, v.Field(i)); err != nil {
				return err
			}
		}
		b.WriteByte(byte(signature.StructEnd))
		return nil
	}
	return writeSignatureOfType(b, t)
}

// commonSignature derives the element signature shared by n values.
func commonSignature(n int, at func(int) reflect.Value) (string, error) {
	if n == 0 {
		return "", fmt.Errorf("%w: cannot derive element signature of an empty container", ErrUnsupportedType)
	}
	var first string
	for i := 0; i < n; i++ {
		var b strings.Builder
		if err := writeSignatureOfValue(&b, at(i)); err != nil {
			return "", err
		}
		if i == 0 {
			first = b.String()
			continue
		}
		if b.String() != first {
			return "", fmt.Errorf("%w: mixed element signatures %q and %q", ErrSignatureMismatch, first, b.String())
		}
	}
	return first, nil
}

// typeHasSignature reports whether the signature of t is fixed by the type
// alone.
func typeHasSignature(t reflect.Type) bool {
	switch {
	case t == variantType:
		return true
	case t == structType:
		return false
	}
	switch t.Kind() {
	case reflect.Interface:
		return false
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return typeHasSignature(t.Elem())
	case reflect.Map:
		return typeHasSignature(t.Key()) && typeHasSignature(t.Elem())
	case reflect.Struct:
		for _, i := range structFields(t) {
			if !typeHasSignature(t.Field(i).Type) {
				return false
			}
		}
	}
	return true
}

func writeSignatureOfType(b *strings.Builder, t reflect.Type) error {
	switch t {
	case variantType:
		b.WriteByte(byte(signature.Variant))
		return nil
	case objectPathType:
		b.WriteByte(byte(signature.ObjectPath))
		return nil
	case signatureType:
		b.WriteByte(byte(signature.Sig))
		return nil
	case unixFDType:
		b.WriteByte(byte(signature.UnixFD))
		return nil
	case structType:
		return fmt.Errorf("%w: Struct needs a value to derive its signature", ErrUnsupportedType)
	}

	var c signature.Code
	switch t.Kind() {
	case reflect.Bool:
		c = signature.Bool
	case reflect.Uint8:
		c = signature.Byte
	case reflect.Int16:
		c = signature.Int16
	case reflect.Uint16:
		c = signature.Uint16
	case reflect.Int32:
		c = signature.Int32
	case reflect.Uint32:
		c = signature.Uint32
	case reflect.Int64, reflect.Int:
		c = signature.Int64
	case reflect.Uint64, reflect.Uint:
		c = signature.Uint64
	case reflect.Float64, reflect.Float32:
		c = signature.Double
	case reflect.String:
		c = signature.String
	case reflect.Pointer:
		return writeSignatureOfType(b, t.Elem())
	case reflect.Slice, reflect.Array:
		b.WriteByte(byte(signature.Array))
		return writeSignatureOfType(b, t.Elem())
	case reflect.Map:
		var key strings.Builder
		if err := writeSignatureOfType(&key, t.Key()); err != nil {
			return err
		}
		if key.Len() != 1 || !signature.Code(key.String()[0]).IsBasic() {
			return fmt.Errorf("%w: map key %v", ErrUnsupportedType, t.Key())
		}
		b.WriteString("a{")
		b.WriteString(key.String())
		if err := writeSignatureOfType(b, t.Elem()); err != nil {
			return err
		}
		b.WriteByte('}')
		return nil
	case reflect.Struct:
		idx := structFields(t)
		if len(idx) == 0 {
			return fmt.Errorf("%w: struct %v has no encodable fields", ErrUnsupportedType, t)
		}
		b.WriteByte(byte(signature.StructStart))
		for _, i := range idx {
			if err := writeSignatureOfType(b, t.Field(i).Type); err != nil {
				return err
			}
		}
		b.WriteByte(byte(signature.StructEnd))
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedType, t)
	}
	b.WriteByte(byte(c))
	return nil
}
