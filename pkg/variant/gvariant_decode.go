package variant

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// gvariantDecoder reads the compact format. Every value is decoded from an
// explicit span [start, end) of data, as derived from framing offsets.
type gvariantDecoder struct {
	data   []byte
	ctx    Context
	fds    *OwnedFds
	depths containerDepths
}

func (d *gvariantDecoder) decode(sig signature.Signature, target reflect.Value) (int, error) {
	if err := d.value(sig, target, 0, len(d.data)); err != nil {
		return 0, err
	}
	return len(d.data), nil
}

func (d *gvariantDecoder) decodeSequence(sigs []signature.Signature, target reflect.Value) (int, error) {
	tuple := signature.Struct(sigs...)
	fields, finish, err := sequenceTarget(tuple, target, len(sigs))
	if err != nil {
		return 0, err
	}
	if err := d.structBody(tuple, fields, 0, len(d.data)); err != nil {
		return 0, err
	}
	return len(d.data), finish()
}

func framingError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidFraming}, args...)...)
}

func (d *gvariantDecoder) readFixed(at, size int) uint64 {
	b := d.data[at : at+size]
	order := d.ctx.ByteOrder()
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}

// readOffset reads a little-endian framing offset of the given width.
func (d *gvariantDecoder) readOffset(at, width int) (int, error) {
	var v uint64
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | uint64(d.data[at+i])
	}
	if v > uint64(len(d.data)) {
		return 0, framingError("offset %d beyond data of %d bytes", v, len(d.data))
	}
	return int(v), nil
}

// alignFrom returns the first position at or after p aligned to alignment.
func (d *gvariantDecoder) alignFrom(p, alignment int) int {
	return p + PaddingFor(d.ctx.Position()+p, alignment)
}

func (d *gvariantDecoder) value(sig signature.Signature, target reflect.Value, start, end int) error {
	switch target.Kind() {
	case reflect.Pointer:
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		return d.value(sig, target.Elem(), start, end)
	case reflect.Interface:
		nv := newNatural(sig)
		if err := d.value(sig, nv, start, end); err != nil {
			return err
		}
		return assignNatural(sig, target, nv)
	}

	switch c := sig.First(); c {
	case signature.Byte, signature.Bool, signature.Int16, signature.Uint16,
		signature.Int32, signature.Uint32, signature.Int64, signature.Uint64, signature.Double:
		size, _ := gvariantFixedSize(sig)
		if err := d.checkFixed(sig, size, start, end); err != nil {
			return err
		}
		bits := d.readFixed(start, size)
		if c == signature.Bool && bits > 1 {
			return fmt.Errorf("%w: boolean value %d", ErrIncorrectValue, bits)
		}
		return setFixed(sig, target, bits)

	case signature.String, signature.ObjectPath, signature.Sig:
		if end <= start || d.data[end-1] != 0 {
			return fmt.Errorf("%w: %q value not NUL-terminated", ErrIncorrectValue, sig)
		}
		s := string(d.data[start : end-1])
		if err := checkString(sig, s); err != nil {
			return err
		}
		return setString(sig, target, s)

	case signature.UnixFD:
		if target.Type() != unixFDType {
			return mismatch(sig, target.Type())
		}
		if err := d.checkFixed(sig, 4, start, end); err != nil {
			return err
		}
		fd, err := d.fds.Get(uint32(d.readFixed(start, 4)))
		if err != nil {
			return err
		}
		target.SetInt(int64(fd))
		return nil

	case signature.Variant:
		return d.variant(target, start, end)

	case signature.Array:
		return d.array(sig, target, start, end)

	case signature.StructStart, signature.DictEntryStart:
		sigs := sig.Fields()
		fields, err := structTarget(sig, target, len(sigs))
		if err != nil {
			return err
		}
		return d.structure(sig, fields, start, end)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
}

func (d *gvariantDecoder) checkFixed(sig signature.Signature, size, start, end int) error {
	if end > len(d.data) {
		return fmt.Errorf("%w: %q at offset %d", ErrUnexpectedEOF, sig, start)
	}
	if end-start != size {
		return framingError("%q value spans %d bytes, want %d", sig, end-start, size)
	}
	return nil
}

// variant splits the span at its last NUL into child value and signature.
func (d *gvariantDecoder) variant(target reflect.Value, start, end int) error {
	sep := bytes.LastIndexByte(d.data[start:end], 0)
	if sep < 0 {
		return framingError("variant without signature separator")
	}
	sig, err := signature.ParseSingle(string(d.data[start+sep+1 : end]))
	if err != nil {
		return err
	}
	if err := d.depths.enter(ContainerVariant); err != nil {
		return err
	}
	valueEnd := start + sep
	if target.Type() == variantType {
		nv := newNatural(sig)
		if err := d.value(sig, nv, start, valueEnd); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(Variant{sig: sig, value: nv.Interface()}))
	} else if err := d.value(sig, target, start, valueEnd); err != nil {
		return err
	}
	d.depths.leave(ContainerVariant)
	return nil
}

// elementSpans locates the elements of an array body.
func (d *gvariantDecoder) elementSpans(elem signature.Signature, start, end int) ([][2]int, error) {
	size := end - start
	if size == 0 {
		return nil, nil
	}
	if fs, fixed := gvariantFixedSize(elem); fixed {
		if size%fs != 0 {
			return nil, framingError("array of %d bytes is not a multiple of element size %d", size, fs)
		}
		spans := make([][2]int, 0, size/fs)
		for p := start; p < end; p += fs {
			spans = append(spans, [2]int{p, p + fs})
		}
		return spans, nil
	}

	width := gvariantOffsetSize(size)
	last, err := d.readOffset(end-width, width)
	if err != nil {
		return nil, err
	}
	offStart := start + last
	if last > size-width || (end-offStart)%width != 0 {
		return nil, framingError("array offset table at %d", last)
	}
	n := (end - offStart) / width
	align := gvariantAlignment(elem)
	spans := make([][2]int, 0, n)
	prev := start
	for i := 0; i < n; i++ {
		rel, err := d.readOffset(offStart+i*width, width)
		if err != nil {
			return nil, err
		}
		s, e := d.alignFrom(prev, align), start+rel
		if e < s || e > offStart {
			return nil, framingError("array element %d spans [%d, %d)", i, s, e)
		}
		spans = append(spans, [2]int{s, e})
		prev = e
	}
	return spans, nil
}

func (d *gvariantDecoder) array(sig signature.Signature, target reflect.Value, start, end int) error {
	elem := sig.Elem()
	if err := d.depths.enter(ContainerArray); err != nil {
		return err
	}
	if end > len(d.data) {
		return fmt.Errorf("%w: array at offset %d", ErrUnexpectedEOF, start)
	}

	if isByteSlice(sig, target) {
		setBytes(target, d.data[start:end])
		d.depths.leave(ContainerArray)
		return nil
	}

	spans, err := d.elementSpans(elem, start, end)
	if err != nil {
		return err
	}
	sink, err := newArraySink(sig, target)
	if err != nil {
		return err
	}
	for _, span := range spans {
		if sink.isMap() {
			k, v := sink.entry()
			if err := d.structure(elem, []reflect.Value{k, v}, span[0], span[1]); err != nil {
				return err
			}
			sink.appendEntry(k, v)
			continue
		}
		ev, err := sink.element()
		if err != nil {
			return err
		}
		if err := d.value(elem, ev, span[0], span[1]); err != nil {
			return err
		}
		sink.appendElement(ev)
	}
	if err := sink.finish(); err != nil {
		return err
	}
	d.depths.leave(ContainerArray)
	return nil
}

func (d *gvariantDecoder) structure(sig signature.Signature, fields []reflect.Value, start, end int) error {
	if err := d.depths.enter(ContainerStruct); err != nil {
		return err
	}
	if err := d.structBody(sig, fields, start, end); err != nil {
		return err
	}
	d.depths.leave(ContainerStruct)
	return nil
}

// structBody decodes struct members, reading the end of each variable-size
// non-final member from the offsets at the back of the span.
func (d *gvariantDecoder) structBody(sig signature.Signature, fields []reflect.Value, start, end int) error {
	if end > len(d.data) {
		return fmt.Errorf("%w: struct at offset %d", ErrUnexpectedEOF, start)
	}
	if fs, fixed := gvariantFixedSize(sig); fixed && end-start != fs {
		return framingError("%q value spans %d bytes, want %d", sig, end-start, fs)
	}

	sigs := sig.Fields()
	framed := 0
	for _, f := range sigs[:len(sigs)-1] {
		if _, fixed := gvariantFixedSize(f); !fixed {
			framed++
		}
	}
	width := gvariantOffsetSize(end - start)
	offStart := end - framed*width
	if offStart < start {
		return framingError("struct of %d bytes cannot hold %d offsets", end-start, framed)
	}

	pos, k := start, 0
	for i, f := range sigs {
		pos = d.alignFrom(pos, gvariantAlignment(f))
		var fend int
		if fs, fixed := gvariantFixedSize(f); fixed {
			fend = pos + fs
		} else if i == len(sigs)-1 {
			fend = offStart
		} else {
			rel, err := d.readOffset(end-(k+1)*width, width)
			if err != nil {
				return err
			}
			fend = start + rel
			k++
		}
		if pos > fend || fend > offStart {
			return framingError("struct member %d of %q spans [%d, %d)", i, sig, pos, fend)
		}
		if err := d.value(f, fields[i], pos, fend); err != nil {
			return err
		}
		pos = fend
	}
	return nil
}
