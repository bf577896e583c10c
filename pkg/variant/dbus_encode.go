package variant

import (
	"fmt"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// dbusEncoder writes the primary format: natural alignment, length-prefixed
// strings and arrays, 8-aligned structs.
type dbusEncoder struct {
	*encoder
}

func (e *dbusEncoder) encodeSequence(sigs []signature.Signature, fields []reflect.Value) error {
	for i, sig := range sigs {
		if err := e.encodeValue(sig, fields[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *dbusEncoder) encodeValue(sig signature.Signature, v reflect.Value) error {
	v, err := indirect(sig, v)
	if err != nil {
		return err
	}

	switch c := sig.First(); c {
	case signature.Byte, signature.Bool, signature.Int16, signature.Uint16,
		signature.Int32, signature.Uint32, signature.Int64, signature.Uint64, signature.Double:
		bits, err := fixedBits(sig, v)
		if err != nil {
			return err
		}
		size := dbusAlignment(c)
		if err := e.pad(size); err != nil {
			return err
		}
		return e.writeFixed(size, bits)

	case signature.String, signature.ObjectPath:
		s, err := stringValue(sig, v)
		if err != nil {
			return err
		}
		if err := e.pad(4); err != nil {
			return err
		}
		if err := e.writeFixed(4, uint64(len(s))); err != nil {
			return err
		}
		if err := e.write([]byte(s)); err != nil {
			return err
		}
		return e.writeByte(0)

	case signature.Sig:
		s, err := stringValue(sig, v)
		if err != nil {
			return err
		}
		return e.writeSignature(signature.Signature(s))

	case signature.UnixFD:
		idx, err := e.fdIndex(sig, v)
		if err != nil {
			return err
		}
		if err := e.pad(4); err != nil {
			return err
		}
		return e.writeFixed(4, uint64(idx))

	case signature.Variant:
		return e.encodeVariant(v)

	case signature.Array:
		return e.encodeArray(sig, v)

	case signature.StructStart, signature.DictEntryStart:
		return e.encodeStruct(sig, v)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
}

func (e *dbusEncoder) writeSignature(sig signature.Signature) error {
	if err := e.writeByte(byte(len(sig))); err != nil {
		return err
	}
	if err := e.write([]byte(sig)); err != nil {
		return err
	}
	return e.writeByte(0)
}

func (e *dbusEncoder) encodeVariant(v reflect.Value) error {
	vv, err := variantOf(v)
	if err != nil {
		return err
	}
	if err := e.depths.enter(ContainerVariant); err != nil {
		return err
	}
	if err := e.writeSignature(vv.sig); err != nil {
		return err
	}
	if err := e.encodeValue(vv.sig, reflect.ValueOf(vv.value)); err != nil {
		return err
	}
	e.depths.leave(ContainerVariant)
	return nil
}

func (e *dbusEncoder) encodeArray(sig signature.Signature, v reflect.Value) error {
	elem := sig.Elem()
	if err := e.depths.enter(ContainerArray); err != nil {
		return err
	}
	if err := e.pad(4); err != nil {
		return err
	}

	// The length prefix excludes the padding to the first element, which
	// is present even for empty arrays.
	align := dbusAlignment(elem.First())
	start := e.pos() + 4
	start += PaddingFor(start, align)
	child, buf := e.sub(start)
	ce := &dbusEncoder{child}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && elem.First() == signature.Byte && v.Type().Elem().Kind() == reflect.Uint8 {
			if err := child.write(v.Bytes()); err != nil {
				return err
			}
			break
		}
		for i := 0; i < v.Len(); i++ {
			if err := ce.encodeValue(elem, v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if !sig.IsDict() {
			return mismatch(sig, v.Type())
		}
		kv := sig.Fields()
		for _, k := range mapEntries(v) {
			if err := ce.encodeDictEntry(kv, k, v.MapIndex(k)); err != nil {
				return err
			}
		}
	default:
		return mismatch(sig, v.Type())
	}

	if child.n > MaxArrayLength {
		return fmt.Errorf("%w: array of %d bytes exceeds %d", ErrIncorrectValue, child.n, MaxArrayLength)
	}
	if err := e.writeFixed(4, uint64(child.n)); err != nil {
		return err
	}
	if err := e.pad(align); err != nil {
		return err
	}
	if err := e.flush(child, buf); err != nil {
		return err
	}
	e.depths.leave(ContainerArray)
	return nil
}

func (e *dbusEncoder) encodeDictEntry(kv []signature.Signature, key, value reflect.Value) error {
	if err := e.pad(8); err != nil {
		return err
	}
	if err := e.depths.enter(ContainerStruct); err != nil {
		return err
	}
	if err := e.encodeValue(kv[0], key); err != nil {
		return err
	}
	if err := e.encodeValue(kv[1], value); err != nil {
		return err
	}
	e.depths.leave(ContainerStruct)
	return nil
}

func (e *dbusEncoder) encodeStruct(sig signature.Signature, v reflect.Value) error {
	sigs := sig.Fields()
	fields, ok := fieldValues(v)
	if !ok || len(fields) != len(sigs) {
		return mismatch(sig, v.Type())
	}
	if err := e.pad(8); err != nil {
		return err
	}
	if err := e.depths.enter(ContainerStruct); err != nil {
		return err
	}
	if err := e.encodeSequence(sigs, fields); err != nil {
		return err
	}
	e.depths.leave(ContainerStruct)
	return nil
}
