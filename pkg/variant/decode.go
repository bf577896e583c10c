package variant

import (
	"fmt"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// Decode decodes a value of type sig from the start of data into out, which
// must be a non-nil pointer. It returns the number of bytes consumed. In the
// compact format values are not self-delimiting, so data must hold exactly
// one value and the whole slice is consumed.
//
// Values of type 'h' are resolved through fds; decoded descriptors remain
// owned by fds. out may be a pointer to an interface, in which case values
// decode to their natural Go types: typed slices, typed maps, Struct for
// structs and Variant for variants.
//
// A multi-type signature decodes into a struct (or Struct) whose fields
// receive the types in order.
func Decode(data []byte, ctx Context, sig signature.Signature, fds *OwnedFds, out any) (int, error) {
	if _, err := signature.Parse(string(sig)); err != nil {
		return 0, err
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, fmt.Errorf("%w: got %T", ErrInvalidTarget, out)
	}
	target := rv.Elem()

	var dec valueDecoder
	switch ctx.Format() {
	case FormatGVariant:
		dec = &gvariantDecoder{data: data, ctx: ctx, fds: fds}
	default:
		dec = &dbusDecoder{data: data, ctx: ctx, fds: fds}
	}

	switch parts := sig.Split(); len(parts) {
	case 0:
		return 0, nil
	case 1:
		return dec.decode(sig, target)
	default:
		return dec.decodeSequence(parts, target)
	}
}

// valueDecoder is a wire format strategy.
type valueDecoder interface {
	decode(sig signature.Signature, target reflect.Value) (int, error)
	decodeSequence(sigs []signature.Signature, target reflect.Value) (int, error)
}

// structTarget prepares target to receive n struct members and returns the
// settable member values.
func structTarget(sig signature.Signature, target reflect.Value, n int) ([]reflect.Value, error) {
	t := target.Type()
	switch {
	case isGoStruct(t):
		idx := structFields(t)
		if len(idx) != n {
			return nil, mismatch(sig, t)
		}
		out := make([]reflect.Value, n)
		for i, fi := range idx {
			out[i] = target.Field(fi)
		}
		return out, nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Interface:
		target.Set(reflect.MakeSlice(t, n, n))
		out := make([]reflect.Value, n)
		for i := range out {
			out[i] = target.Index(i)
		}
		return out, nil
	}
	return nil, mismatch(sig, t)
}

// sequenceTarget is structTarget for a top-level multi-type value, following
// pointers and filling interface targets with a Struct.
func sequenceTarget(sig signature.Signature, target reflect.Value, n int) ([]reflect.Value, func() error, error) {
	for target.Kind() == reflect.Pointer {
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		target = target.Elem()
	}
	if target.Kind() == reflect.Interface {
		nv := reflect.New(structType).Elem()
		fields, err := structTarget(sig, nv, n)
		if err != nil {
			return nil, nil, err
		}
		return fields, func() error { return assignNatural(sig, target, nv) }, nil
	}
	fields, err := structTarget(sig, target, n)
	return fields, func() error { return nil }, err
}

// arraySink appends decoded elements to a slice, array or map target.
type arraySink struct {
	sig    signature.Signature
	target reflect.Value
	acc    reflect.Value
	n      int
}

func newArraySink(sig signature.Signature, target reflect.Value) (*arraySink, error) {
	s := &arraySink{sig: sig, target: target}
	switch target.Kind() {
	case reflect.Slice:
		s.acc = reflect.MakeSlice(target.Type(), 0, 0)
	case reflect.Array:
	case reflect.Map:
		if !sig.IsDict() {
			return nil, mismatch(sig, target.Type())
		}
		s.acc = reflect.MakeMap(target.Type())
	default:
		return nil, mismatch(sig, target.Type())
	}
	return s, nil
}

// isMap reports whether elements are dict entries stored into a map.
func (s *arraySink) isMap() bool {
	return s.target.Kind() == reflect.Map
}

// element returns a settable value for the next element.
func (s *arraySink) element() (reflect.Value, error) {
	if s.target.Kind() == reflect.Array {
		if s.n >= s.target.Len() {
			return reflect.Value{}, mismatch(s.sig, s.target.Type())
		}
		return s.target.Index(s.n), nil
	}
	return reflect.New(s.target.Type().Elem()).Elem(), nil
}

// entry returns settable key and value holders for the next dict entry.
func (s *arraySink) entry() (reflect.Value, reflect.Value) {
	t := s.target.Type()
	return reflect.New(t.Key()).Elem(), reflect.New(t.Elem()).Elem()
}

func (s *arraySink) appendElement(v reflect.Value) {
	if s.target.Kind() == reflect.Slice {
		s.acc = reflect.Append(s.acc, v)
	}
	s.n++
}

func (s *arraySink) appendEntry(k, v reflect.Value) {
	s.acc.SetMapIndex(k, v)
	s.n++
}

func (s *arraySink) finish() error {
	switch s.target.Kind() {
	case reflect.Array:
		if s.n != s.target.Len() {
			return fmt.Errorf("%w: %d elements for %v", ErrSignatureMismatch, s.n, s.target.Type())
		}
	default:
		s.target.Set(s.acc)
	}
	return nil
}

// isByteSlice reports whether target can take an 'ay' payload directly.
func isByteSlice(sig signature.Signature, target reflect.Value) bool {
	return target.Kind() == reflect.Slice && sig.Elem().First() == signature.Byte &&
		target.Type().Elem().Kind() == reflect.Uint8
}

// setBytes stores a copy of b into a byte slice target.
func setBytes(target reflect.Value, b []byte) {
	target.SetBytes(append(make([]byte, 0, len(b)), b...))
}
