package variant

import (
	"bytes"
	"fmt"
	"io"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// MaxArrayLength is the maximum encoded size of one array, in bytes.
const MaxArrayLength = 1 << 26

// Data is an encoded value together with the context it was encoded in and
// the descriptors it refers to. Data owns its descriptors; Close releases
// them.
type Data struct {
	bytes []byte
	ctx   Context
	sig   signature.Signature
	fds   *OwnedFds
}

// NewData wraps received bytes for decoding. fds may be nil.
func NewData(b []byte, ctx Context, fds *OwnedFds) *Data {
	return &Data{bytes: b, ctx: ctx, fds: fds}
}

// Bytes returns the encoded bytes.
func (d *Data) Bytes() []byte { return d.bytes }

// Context returns the context the bytes were encoded in.
func (d *Data) Context() Context { return d.ctx }

// Signature returns the signature used to encode, if known.
func (d *Data) Signature() signature.Signature { return d.sig }

// Fds returns the descriptor table. It may be nil.
func (d *Data) Fds() *OwnedFds { return d.fds }

// Len returns the number of encoded bytes.
func (d *Data) Len() int { return len(d.bytes) }

// Decode decodes a value of type sig from the start of the data into out.
func (d *Data) Decode(sig signature.Signature, out any) (int, error) {
	return Decode(d.bytes, d.ctx, sig, d.fds, out)
}

// Close releases the descriptors.
func (d *Data) Close() error {
	return d.fds.Close()
}

// Written is the result of EncodeTo.
type Written struct {
	// Len is the number of bytes written.
	Len int
	// Fds holds duplicates of every descriptor the value referenced.
	Fds *OwnedFds
}

// Size is the result of EncodedSize.
type Size struct {
	Len    int
	NumFds int
}

// Encode encodes v with its derived signature.
func Encode(ctx Context, v any) (*Data, error) {
	sig, err := SignatureOf(v)
	if err != nil {
		return nil, err
	}
	return EncodeForSignature(ctx, sig, v)
}

// EncodeForSignature encodes v as a value of type sig.
func EncodeForSignature(ctx Context, sig signature.Signature, v any) (*Data, error) {
	var buf bytes.Buffer
	w, err := EncodeTo(&buf, ctx, sig, v)
	if err != nil {
		return nil, err
	}
	return &Data{bytes: buf.Bytes(), ctx: ctx, sig: sig, fds: w.Fds}, nil
}

// EncodeTo writes v as a value of type sig to w. On error nothing is rolled
// back: w may hold a partial encoding, but any descriptors duplicated so far
// are closed.
func EncodeTo(w io.Writer, ctx Context, sig signature.Signature, v any) (*Written, error) {
	fds := &OwnedFds{}
	n, err := encode(w, ctx, sig, v, &fdCollector{owned: fds}, false)
	if err != nil {
		fds.Close()
		return nil, err
	}
	return &Written{Len: n, Fds: fds}, nil
}

// EncodedSize returns the size EncodeTo would produce for v with its derived
// signature, without duplicating any descriptor.
func EncodedSize(ctx Context, v any) (Size, error) {
	sig, err := SignatureOf(v)
	if err != nil {
		return Size{}, err
	}
	return EncodedSizeForSignature(ctx, sig, v)
}

// EncodedSizeForSignature is like EncodedSize with an explicit signature.
func EncodedSizeForSignature(ctx Context, sig signature.Signature, v any) (Size, error) {
	fds := &fdCollector{}
	n, err := encode(io.Discard, ctx, sig, v, fds, true)
	if err != nil {
		return Size{}, err
	}
	return Size{Len: n, NumFds: fds.count()}, nil
}

// valueEncoder is a wire format strategy.
type valueEncoder interface {
	encodeValue(sig signature.Signature, v reflect.Value) error
	encodeSequence(sigs []signature.Signature, fields []reflect.Value) error
	written() int
}

func encode(w io.Writer, ctx Context, sig signature.Signature, v any, fds *fdCollector, sizeOnly bool) (int, error) {
	if _, err := signature.Parse(string(sig)); err != nil {
		return 0, err
	}

	base := &encoder{ctx: ctx, w: w, fds: fds, depths: &containerDepths{}, sizeOnly: sizeOnly}
	var enc valueEncoder
	switch ctx.Format() {
	case FormatGVariant:
		enc = &gvariantEncoder{base}
	default:
		enc = &dbusEncoder{base}
	}

	rv := reflect.ValueOf(v)
	var err error
	switch parts := sig.Split(); len(parts) {
	case 0:
		if v != nil {
			if fields, ok := fieldValuesOf(rv); !ok || len(fields) != 0 {
				return 0, fmt.Errorf("%w: empty signature with value %T", ErrSignatureMismatch, v)
			}
		}
	case 1:
		err = enc.encodeValue(sig, rv)
	default:
		fields, ok := fieldValuesOf(rv)
		if !ok {
			return 0, fmt.Errorf("%w: %q needs a struct value, got %T", ErrSignatureMismatch, sig, v)
		}
		if len(fields) != len(parts) {
			return 0, fmt.Errorf("%w: %q has %d types, value has %d fields", ErrSignatureMismatch, sig, len(parts), len(fields))
		}
		err = enc.encodeSequence(parts, fields)
	}
	if err != nil {
		return 0, err
	}
	return enc.written(), nil
}

// fieldValuesOf is fieldValues after following pointers.
func fieldValuesOf(v reflect.Value) ([]reflect.Value, bool) {
	v, err := indirect("", v)
	if err != nil {
		return nil, false
	}
	return fieldValues(v)
}

// encoder is the byte sink shared by both formats. Positions are absolute:
// ctx.Position() is the stream offset of the first byte this encoder writes.
type encoder struct {
	ctx      Context
	w        io.Writer
	n        int
	fds      *fdCollector
	depths   *containerDepths
	sizeOnly bool
	scratch  [8]byte
}

func (e *encoder) written() int { return e.n }

func (e *encoder) pos() int { return e.ctx.Position() + e.n }

func (e *encoder) write(p []byte) error {
	n, err := e.w.Write(p)
	e.n += n
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	return nil
}

func (e *encoder) writeByte(b byte) error {
	e.scratch[0] = b
	return e.write(e.scratch[:1])
}

var zeros [8]byte

func (e *encoder) pad(alignment int) error {
	if p := PaddingFor(e.pos(), alignment); p > 0 {
		return e.write(zeros[:p])
	}
	return nil
}

// writeFixed writes the low size bytes of bits in the context byte order.
func (e *encoder) writeFixed(size int, bits uint64) error {
	order := e.ctx.ByteOrder()
	switch size {
	case 1:
		e.scratch[0] = byte(bits)
	case 2:
		order.PutUint16(e.scratch[:2], uint16(bits))
	case 4:
		order.PutUint32(e.scratch[:4], uint32(bits))
	default:
		order.PutUint64(e.scratch[:8], bits)
	}
	return e.write(e.scratch[:size])
}

// sub returns an encoder for a nested region that starts at the absolute
// position start and is buffered until its length is known.
func (e *encoder) sub(start int) (*encoder, *bytes.Buffer) {
	child := &encoder{
		ctx:      e.ctx.withPosition(start),
		fds:      e.fds,
		depths:   e.depths,
		sizeOnly: e.sizeOnly,
	}
	if e.sizeOnly {
		child.w = io.Discard
		return child, nil
	}
	buf := &bytes.Buffer{}
	child.w = buf
	return child, buf
}

// flush appends a finished sub region.
func (e *encoder) flush(child *encoder, buf *bytes.Buffer) error {
	if e.sizeOnly {
		e.n += child.n
		return nil
	}
	return e.write(buf.Bytes())
}

// fdIndex resolves a UnixFD value to its table index.
func (e *encoder) fdIndex(sig signature.Signature, v reflect.Value) (uint32, error) {
	if v.Type() != unixFDType {
		return 0, mismatch(sig, v.Type())
	}
	return e.fds.add(int(v.Int()))
}

// variantOf returns the Variant held by v, deriving one for plain values.
func variantOf(v reflect.Value) (Variant, error) {
	if v.Type() == variantType {
		vv := v.Interface().(Variant)
		if vv.sig.IsEmpty() {
			return vv, fmt.Errorf("%w: zero Variant", ErrIncorrectValue)
		}
		if _, err := signature.ParseSingle(string(vv.sig)); err != nil {
			return vv, err
		}
		return vv, nil
	}
	return NewVariant(v.Interface())
}

// mapEntries returns the keys of a map in a deterministic order.
func mapEntries(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	sortKeys(keys)
	return keys
}
