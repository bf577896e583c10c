package variant

import (
	"fmt"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// dbusDecoder reads the primary format sequentially.
type dbusDecoder struct {
	data   []byte
	ctx    Context
	off    int
	fds    *OwnedFds
	depths containerDepths
}

func (d *dbusDecoder) decode(sig signature.Signature, target reflect.Value) (int, error) {
	if err := d.value(sig, target); err != nil {
		return d.off, err
	}
	return d.off, nil
}

func (d *dbusDecoder) decodeSequence(sigs []signature.Signature, target reflect.Value) (int, error) {
	fields, finish, err := sequenceTarget(signature.Concat(sigs...), target, len(sigs))
	if err != nil {
		return 0, err
	}
	for i, sig := range sigs {
		if err := d.value(sig, fields[i]); err != nil {
			return d.off, err
		}
	}
	return d.off, finish()
}

func (d *dbusDecoder) pos() int { return d.ctx.Position() + d.off }

func (d *dbusDecoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.data)-d.off {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrUnexpectedEOF, n, d.off, len(d.data)-d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *dbusDecoder) align(alignment int) error {
	b, err := d.take(PaddingFor(d.pos(), alignment))
	if err != nil {
		return err
	}
	for _, x := range b {
		if x != 0 {
			return fmt.Errorf("%w: non-zero padding at offset %d", ErrIncorrectValue, d.off)
		}
	}
	return nil
}

func (d *dbusDecoder) readFixed(size int) (uint64, error) {
	b, err := d.take(size)
	if err != nil {
		return 0, err
	}
	order := d.ctx.ByteOrder()
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(order.Uint16(b)), nil
	case 4:
		return uint64(order.Uint32(b)), nil
	default:
		return order.Uint64(b), nil
	}
}

func (d *dbusDecoder) readSignature() (signature.Signature, error) {
	n, err := d.readFixed(1)
	if err != nil {
		return signature.Empty, err
	}
	b, err := d.take(int(n) + 1)
	if err != nil {
		return signature.Empty, err
	}
	if b[n] != 0 {
		return signature.Empty, fmt.Errorf("%w: signature not NUL-terminated", ErrIncorrectValue)
	}
	return signature.Parse(string(b[:n]))
}

func (d *dbusDecoder) value(sig signature.Signature, target reflect.Value) error {
	switch target.Kind() {
	case reflect.Pointer:
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		return d.value(sig, target.Elem())
	case reflect.Interface:
		nv := newNatural(sig)
		if err := d.value(sig, nv); err != nil {
			return err
		}
		return assignNatural(sig, target, nv)
	}

	switch c := sig.First(); c {
	case signature.Byte, signature.Bool, signature.Int16, signature.Uint16,
		signature.Int32, signature.Uint32, signature.Int64, signature.Uint64, signature.Double:
		size := dbusAlignment(c)
		if err := d.align(size); err != nil {
			return err
		}
		bits, err := d.readFixed(size)
		if err != nil {
			return err
		}
		if c == signature.Bool && bits > 1 {
			return fmt.Errorf("%w: boolean value %d", ErrIncorrectValue, bits)
		}
		return setFixed(sig, target, bits)

	case signature.String, signature.ObjectPath:
		if err := d.align(4); err != nil {
			return err
		}
		n, err := d.readFixed(4)
		if err != nil {
			return err
		}
		b, err := d.take(int(n) + 1)
		if err != nil {
			return err
		}
		if b[n] != 0 {
			return fmt.Errorf("%w: string not NUL-terminated", ErrIncorrectValue)
		}
		s := string(b[:n])
		if err := checkString(sig, s); err != nil {
			return err
		}
		return setString(sig, target, s)

	case signature.Sig:
		s, err := d.readSignature()
		if err != nil {
			return err
		}
		return setString(sig, target, string(s))

	case signature.UnixFD:
		if target.Type() != unixFDType {
			return mismatch(sig, target.Type())
		}
		if err := d.align(4); err != nil {
			return err
		}
		idx, err := d.readFixed(4)
		if err != nil {
			return err
		}
		fd, err := d.fds.Get(uint32(idx))
		if err != nil {
			return err
		}
		target.SetInt(int64(fd))
		return nil

	case signature.Variant:
		return d.variant(target)

	case signature.Array:
		return d.array(sig, target)

	case signature.StructStart, signature.DictEntryStart:
		return d.structure(sig, target)
	}
	return fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
}

func (d *dbusDecoder) variant(target reflect.Value) error {
	sig, err := d.readSignature()
	if err != nil {
		return err
	}
	if !sig.IsSingle() {
		return fmt.Errorf("%w: variant signature %q is not a single complete type", ErrIncorrectValue, sig)
	}
	if err := d.depths.enter(ContainerVariant); err != nil {
		return err
	}
	if target.Type() == variantType {
		nv := newNatural(sig)
		if err := d.value(sig, nv); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(Variant{sig: sig, value: nv.Interface()}))
	} else if err := d.value(sig, target); err != nil {
		return err
	}
	d.depths.leave(ContainerVariant)
	return nil
}

func (d *dbusDecoder) array(sig signature.Signature, target reflect.Value) error {
	elem := sig.Elem()
	if err := d.depths.enter(ContainerArray); err != nil {
		return err
	}
	if err := d.align(4); err != nil {
		return err
	}
	n, err := d.readFixed(4)
	if err != nil {
		return err
	}
	if n > MaxArrayLength {
		return fmt.Errorf("%w: array length %d exceeds %d", ErrIncorrectValue, n, MaxArrayLength)
	}
	if err := d.align(dbusAlignment(elem.First())); err != nil {
		return err
	}
	if int(n) > len(d.data)-d.off {
		return fmt.Errorf("%w: array of %d bytes at offset %d", ErrUnexpectedEOF, n, d.off)
	}
	end := d.off + int(n)

	if isByteSlice(sig, target) {
		b, _ := d.take(int(n))
		setBytes(target, b)
		d.depths.leave(ContainerArray)
		return nil
	}

	sink, err := newArraySink(sig, target)
	if err != nil {
		return err
	}
	for d.off < end {
		if sink.isMap() {
			k, v := sink.entry()
			if err := d.dictEntry(elem, k, v); err != nil {
				return err
			}
			sink.appendEntry(k, v)
			continue
		}
		ev, err := sink.element()
		if err != nil {
			return err
		}
		if err := d.value(elem, ev); err != nil {
			return err
		}
		sink.appendElement(ev)
	}
	if d.off != end {
		return fmt.Errorf("%w: array elements overrun declared length %d", ErrIncorrectValue, n)
	}
	if err := sink.finish(); err != nil {
		return err
	}
	d.depths.leave(ContainerArray)
	return nil
}

func (d *dbusDecoder) dictEntry(sig signature.Signature, key, value reflect.Value) error {
	kv := sig.Fields()
	if err := d.align(8); err != nil {
		return err
	}
	if err := d.depths.enter(ContainerStruct); err != nil {
		return err
	}
	if err := d.value(kv[0], key); err != nil {
		return err
	}
	if err := d.value(kv[1], value); err != nil {
		return err
	}
	d.depths.leave(ContainerStruct)
	return nil
}

func (d *dbusDecoder) structure(sig signature.Signature, target reflect.Value) error {
	sigs := sig.Fields()
	fields, err := structTarget(sig, target, len(sigs))
	if err != nil {
		return err
	}
	if err := d.align(8); err != nil {
		return err
	}
	if err := d.depths.enter(ContainerStruct); err != nil {
		return err
	}
	for i, f := range sigs {
		if err := d.value(f, fields[i]); err != nil {
			return err
		}
	}
	d.depths.leave(ContainerStruct)
	return nil
}
