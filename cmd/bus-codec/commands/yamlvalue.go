package commands

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/mash-protocol/busgo/pkg/signature"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// ErrValue is returned when a YAML value does not fit its signature.
var ErrValue = errors.New("value does not fit signature")

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// FromYAML converts a value produced by yaml.Unmarshal into the Go
// representation the encoder expects for sig.
//
// Containers map as follows: arrays are sequences, dictionaries are
// mappings, structs (and multi-type signatures) are sequences with one
// element per field, and variants are mappings with "signature" and
// "value" keys. A variant given as a plain scalar gets its signature
// inferred.
func FromYAML(sig signature.Signature, v any) (any, error) {
	if parts := sig.Split(); len(parts) > 1 {
		return fieldsFromYAML(sig, parts, v)
	}

	switch sig.First() {
	case signature.Byte:
		n, err := toUint(sig, v, math.MaxUint8)
		return uint8(n), err
	case signature.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %q needs a boolean, got %T", ErrValue, sig, v)
		}
		return b, nil
	case signature.Int16:
		n, err := toInt(sig, v, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case signature.Uint16:
		n, err := toUint(sig, v, math.MaxUint16)
		return uint16(n), err
	case signature.Int32:
		n, err := toInt(sig, v, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case signature.Uint32:
		n, err := toUint(sig, v, math.MaxUint32)
		return uint32(n), err
	case signature.Int64:
		return toInt(sig, v, math.MinInt64, math.MaxInt64)
	case signature.Uint64:
		return toUint(sig, v, math.MaxUint64)
	case signature.Double:
		return toFloat(sig, v)
	case signature.String:
		return toString(sig, v)
	case signature.ObjectPath:
		s, err := toString(sig, v)
		return variant.ObjectPath(s), err
	case signature.Sig:
		s, err := toString(sig, v)
		return signature.Signature(s), err
	case signature.UnixFD:
		n, err := toInt(sig, v, 0, math.MaxInt32)
		return variant.UnixFD(n), err
	case signature.Variant:
		return variantFromYAML(v)
	case signature.Array:
		if sig.IsDict() {
			return dictFromYAML(sig, v)
		}
		return arrayFromYAML(sig, v)
	case signature.StructStart:
		return fieldsFromYAML(sig, sig.Fields(), v)
	}
	return nil, fmt.Errorf("%w: %q", variant.ErrInvalidSignature, sig)
}

func fieldsFromYAML(sig signature.Signature, fields []signature.Signature, v any) (any, error) {
	seq, ok := v.([]any)
	if !ok || len(seq) != len(fields) {
		return nil, fmt.Errorf("%w: %q needs a sequence of %d values", ErrValue, sig, len(fields))
	}
	out := make(variant.Struct, len(fields))
	for i, f := range fields {
		c, err := FromYAML(f, seq[i])
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func arrayFromYAML(sig signature.Signature, v any) (any, error) {
	elem := sig.Elem()
	if s, ok := v.(string); ok && elem.First() == signature.Byte {
		return []byte(s), nil
	}
	if v == nil {
		return []any{}, nil
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q needs a sequence, got %T", ErrValue, sig, v)
	}
	out := make([]any, len(seq))
	for i, e := range seq {
		c, err := FromYAML(elem, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func dictFromYAML(sig signature.Signature, v any) (any, error) {
	kv := sig.Fields()
	entries := map[any]any{}
	switch m := v.(type) {
	case nil:
	case map[string]any:
		for k, e := range m {
			entries[k] = e
		}
	case map[any]any:
		entries = m
	default:
		return nil, fmt.Errorf("%w: %q needs a mapping, got %T", ErrValue, sig, v)
	}

	keyType, err := basicType(kv[0])
	if err != nil {
		return nil, err
	}
	out := reflect.MakeMapWithSize(reflect.MapOf(keyType, anyType), len(entries))
	for k, e := range entries {
		key, err := FromYAML(kv[0], k)
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", k, err)
		}
		val, err := FromYAML(kv[1], e)
		if err != nil {
			return nil, fmt.Errorf("entry %v: %w", k, err)
		}
		out.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(&val).Elem())
	}
	return out.Interface(), nil
}

func variantFromYAML(v any) (any, error) {
	var m map[string]any
	switch t := v.(type) {
	case map[string]any:
		m = t
	case map[any]any:
		m = make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = e
		}
	}
	if m != nil {
		sigText, ok := m["signature"].(string)
		if ok && len(m) == 2 {
			if inner, has := m["value"]; has {
				sig, err := signature.ParseSingle(sigText)
				if err != nil {
					return nil, err
				}
				c, err := FromYAML(sig, inner)
				if err != nil {
					return nil, err
				}
				return variant.MakeVariantWithSignature(c, sig), nil
			}
		}
	}

	sig, err := inferSignature(v)
	if err != nil {
		return nil, err
	}
	c, err := FromYAML(sig, v)
	if err != nil {
		return nil, err
	}
	return variant.MakeVariantWithSignature(c, sig), nil
}

// inferSignature picks a signature for an untyped scalar.
func inferSignature(v any) (signature.Signature, error) {
	switch n := v.(type) {
	case bool:
		return "b", nil
	case int:
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return "i", nil
		}
		return "x", nil
	case int64:
		return "x", nil
	case uint64:
		return "t", nil
	case float64:
		return "d", nil
	case string:
		return "s", nil
	}
	return "", fmt.Errorf("%w: cannot infer a variant signature for %T; use signature and value keys", ErrValue, v)
}

func basicType(sig signature.Signature) (reflect.Type, error) {
	switch sig.First() {
	case signature.Byte:
		return reflect.TypeOf(uint8(0)), nil
	case signature.Bool:
		return reflect.TypeOf(false), nil
	case signature.Int16:
		return reflect.TypeOf(int16(0)), nil
	case signature.Uint16:
		return reflect.TypeOf(uint16(0)), nil
	case signature.Int32:
		return reflect.TypeOf(int32(0)), nil
	case signature.Uint32:
		return reflect.TypeOf(uint32(0)), nil
	case signature.Int64:
		return reflect.TypeOf(int64(0)), nil
	case signature.Uint64:
		return reflect.TypeOf(uint64(0)), nil
	case signature.Double:
		return reflect.TypeOf(float64(0)), nil
	case signature.String:
		return reflect.TypeOf(""), nil
	case signature.ObjectPath:
		return reflect.TypeOf(variant.ObjectPath("")), nil
	case signature.Sig:
		return reflect.TypeOf(signature.Signature("")), nil
	case signature.UnixFD:
		return reflect.TypeOf(variant.UnixFD(0)), nil
	}
	return nil, fmt.Errorf("%w: %q is not a basic type", variant.ErrInvalidSignature, sig)
}

func toInt(sig signature.Signature, v any, lo, hi int64) (int64, error) {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int64:
		n = t
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d out of range for %q", ErrValue, t, sig)
		}
		n = int64(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrValue, t)
		}
		n = int64(t)
	case string:
		p, err := strconv.ParseInt(t, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrValue, t)
		}
		n = p
	default:
		return 0, fmt.Errorf("%w: %q needs an integer, got %T", ErrValue, sig, v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d out of range for %q", ErrValue, n, sig)
	}
	return n, nil
}

func toUint(sig signature.Signature, v any, hi uint64) (uint64, error) {
	var n uint64
	switch t := v.(type) {
	case uint64:
		n = t
	case string:
		p, err := strconv.ParseUint(t, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an unsigned integer", ErrValue, t)
		}
		n = p
	default:
		i, err := toInt(sig, v, 0, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		n = uint64(i)
	}
	if n > hi {
		return 0, fmt.Errorf("%w: %d out of range for %q", ErrValue, n, sig)
	}
	return n, nil
}

func toFloat(sig signature.Signature, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %q needs a number, got %T", ErrValue, sig, v)
}

func toString(sig signature.Signature, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q needs a string, got %T", ErrValue, sig, v)
	}
	return s, nil
}

// ToYAML converts a decoded value into plain data for yaml.Marshal:
// variants become signature/value mappings, structs become sequences and
// named string and integer types lose their names.
func ToYAML(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case variant.Variant:
		return map[string]any{
			"signature": t.Signature().String(),
			"value":     ToYAML(t.Value()),
		}
	case variant.ObjectPath:
		return string(t)
	case signature.Signature:
		return string(t)
	case variant.UnixFD:
		return int(t)
	case []byte:
		out := make([]any, len(t))
		for i, b := range t {
			out[i] = int(b)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = ToYAML(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[any]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[ToYAML(iter.Key().Interface())] = ToYAML(iter.Value().Interface())
		}
		return out
	}
	return v
}
