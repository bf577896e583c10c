package variant

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"slices"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// gvariantEncoder writes the compact format: values carry no length
// prefixes, variable-size members are located through trailing framing
// offsets.
type gvariantEncoder struct {
	*encoder
}

// encodeSequence writes a multi-type top-level value as a tuple.
func (e *gvariantEncoder) encodeSequence(sigs []signature.Signature, fields []reflect.Value) error {
	return e.structBody(signature.Struct(sigs...), fields)
}

func (e *gvariantEncoder) encodeValue(sig signature.Signature, v reflect.Value) error {
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
		size, _ := gvariantFixedSize(sig)
		if err := e.pad(size); err != nil {
			return err
		}
		return e.writeFixed(size, bits)

	case signature.String, signature.ObjectPath, signature.Sig:
		s, err := stringValue(sig, v)
		if err != nil {
			return err
		}
		if err := e.write([]byte(s)); err != nil {
			return err
		}
		return e.writeByte(0)

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
		sigs := sig.Fields()
		fields, ok := fieldValues(v)
		if !ok || len(fields) != len(sigs) {
			return mismatch(sig, v.Type())
		}
		return e.encodeStruct(sig, fields)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
}

// encodeVariant writes the child value, a NUL and the child signature.
func (e *gvariantEncoder) encodeVariant(v reflect.Value) error {
	vv, err := variantOf(v)
	if err != nil {
		return err
	}
	if err := e.depths.enter(ContainerVariant); err != nil {
		return err
	}
	if err := e.pad(8); err != nil {
		return err
	}
	if err := e.encodeValue(vv.sig, reflect.ValueOf(vv.value)); err != nil {
		return err
	}
	if err := e.writeByte(0); err != nil {
		return err
	}
	if err := e.write([]byte(vv.sig)); err != nil {
		return err
	}
	e.depths.leave(ContainerVariant)
	return nil
}

func (e *gvariantEncoder) encodeArray(sig signature.Signature, v reflect.Value) error {
	elem := sig.Elem()
	if err := e.depths.enter(ContainerArray); err != nil {
		return err
	}
	if err := e.pad(gvariantAlignment(elem)); err != nil {
		return err
	}
	start := e.pos()
	_, fixed := gvariantFixedSize(elem)

	var ends []int
	mark := func() {
		if !fixed {
			ends = append(ends, e.pos()-start)
		}
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && elem.First() == signature.Byte && v.Type().Elem().Kind() == reflect.Uint8 {
			if err := e.write(v.Bytes()); err != nil {
				return err
			}
			break
		}
		for i := 0; i < v.Len(); i++ {
			if err := e.encodeValue(elem, v.Index(i)); err != nil {
				return err
			}
			mark()
		}
	case reflect.Map:
		if !sig.IsDict() {
			return mismatch(sig, v.Type())
		}
		for _, k := range mapEntries(v) {
			if err := e.encodeStruct(elem, []reflect.Value{k, v.MapIndex(k)}); err != nil {
				return err
			}
			mark()
		}
	default:
		return mismatch(sig, v.Type())
	}

	if err := e.writeOffsets(ends, e.pos()-start); err != nil {
		return err
	}
	e.depths.leave(ContainerArray)
	return nil
}

func (e *gvariantEncoder) encodeStruct(sig signature.Signature, fields []reflect.Value) error {
	if err := e.depths.enter(ContainerStruct); err != nil {
		return err
	}
	if err := e.structBody(sig, fields); err != nil {
		return err
	}
	e.depths.leave(ContainerStruct)
	return nil
}

// structBody writes the members of a struct or dict-entry followed by the
// end offsets of its variable-size non-final members, last one first.
func (e *gvariantEncoder) structBody(sig signature.Signature, fields []reflect.Value) error {
	sigs := sig.Fields()
	align := gvariantAlignment(sig)
	if err := e.pad(align); err != nil {
		return err
	}
	start := e.pos()

	var offsets []int
	for i, f := range sigs {
		if err := e.encodeValue(f, fields[i]); err != nil {
			return err
		}
		if _, fixed := gvariantFixedSize(f); !fixed && i < len(sigs)-1 {
			offsets = append(offsets, e.pos()-start)
		}
	}
	if _, fixed := gvariantFixedSize(sig); fixed {
		return e.pad(align)
	}
	slices.Reverse(offsets)
	return e.writeOffsets(offsets, e.pos()-start)
}

// writeOffsets appends framing offsets, always little-endian.
func (e *gvariantEncoder) writeOffsets(offsets []int, bodyLen int) error {
	width := gvariantFramedSize(bodyLen, len(offsets))
	for _, off := range offsets {
		binary.LittleEndian.PutUint64(e.scratch[:], uint64(off))
		if err := e.write(e.scratch[:width]); err != nil {
			return err
		}
	}
	return nil
}
