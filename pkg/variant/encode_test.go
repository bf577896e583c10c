package variant

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/busgo/pkg/signature"
)

type point struct {
	X int32
	Y int32
}

type record struct {
	Name    string
	Tags    []string
	Props   map[string]Variant
	Origin  point
	skipped int
	Ignored string `bus:"-"`
}

func contexts() map[string]Context {
	return map[string]Context{
		"dbus-le":     NewDBusContext(LE, 0),
		"dbus-be":     NewDBusContext(BE, 0),
		"gvariant-le": NewGVariantContext(LE, 0),
		"gvariant-be": NewGVariantContext(BE, 0),
	}
}

func roundTripValues() map[string]any {
	return map[string]any{
		"byte":        uint8(7),
		"bool":        true,
		"int16":       int16(-3),
		"uint16":      uint16(9),
		"int32":       int32(-100000),
		"uint32":      uint32(1 << 31),
		"int64":       int64(-1 << 40),
		"uint64":      uint64(1 << 63),
		"double":      3.5,
		"string":      "hello",
		"empty":       "",
		"object path": ObjectPath("/org/freedesktop/DBus"),
		"signature":   signature.Signature("a{sv}"),
		"int32 array": []int32{1, 2, 3},
		"byte array":  []byte{1, 2, 3, 4, 5},
		"strings":     []string{"a", "bc", ""},
		"no strings":  []string{},
		"nested":      [][]uint16{{1}, {}, {2, 3}},
		"dict":        map[string]Variant{"k": MakeVariant(uint32(1)), "s": MakeVariant("x")},
		"int keys":    map[uint16][]string{1: {"a"}, 2: {}},
		"struct":      Struct{"x", uint64(42)},
		"go struct":   point{X: -1, Y: 2},
		"points":      []point{{1, 2}, {3, 4}},
		"variant":     MakeVariant(MakeVariant(int16(5))),
		"record": record{
			Name:   "dev",
			Tags:   []string{"a"},
			Props:  map[string]Variant{"on": MakeVariant(true)},
			Origin: point{X: 1, Y: 1},
		},
	}
}

// --- round trip tests ---

func TestRoundTrip(t *testing.T) {
	for ctxName, ctx := range contexts() {
		for name, v := range roundTripValues() {
			t.Run(ctxName+"/"+name, func(t *testing.T) {
				data, err := Encode(ctx, v)
				require.NoError(t, err)
				defer data.Close()

				size, err := EncodedSize(ctx, v)
				require.NoError(t, err)
				assert.Equal(t, data.Len(), size.Len, "size must match encoding")

				out := reflect.New(reflect.TypeOf(v))
				sig, err := SignatureOf(v)
				require.NoError(t, err)
				n, err := data.Decode(sig, out.Interface())
				require.NoError(t, err)
				assert.Equal(t, data.Len(), n)
				assert.Equal(t, v, out.Elem().Interface())
			})
		}
	}
}

func TestRoundTrip_IntoInterface(t *testing.T) {
	for ctxName, ctx := range contexts() {
		t.Run(ctxName, func(t *testing.T) {
			in := map[string]Variant{
				"n":    MakeVariant(int32(3)),
				"list": MakeVariant([]string{"a"}),
				"pair": MakeVariant(Struct{uint8(1), "b"}),
			}
			data, err := Encode(ctx, in)
			require.NoError(t, err)

			var out any
			_, err = data.Decode("a{sv}", &out)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestRoundTrip_Positions(t *testing.T) {
	for _, pos := range []int{0, 1, 3, 4, 7, 8} {
		ctx := NewDBusContext(LE, pos)
		v := Struct{uint8(1), uint64(2), "three"}

		data, err := Encode(ctx, v)
		require.NoError(t, err)
		size, err := EncodedSize(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, data.Len(), size.Len, "position %d", pos)

		var out Struct
		_, err = data.Decode("(yts)", &out)
		require.NoError(t, err, "position %d", pos)
		assert.Equal(t, v, out)
	}
}

// --- golden encodings ---

func TestDBusGolden(t *testing.T) {
	tests := []struct {
		name string
		sig  signature.Signature
		v    any
		want []byte
	}{
		{
			name: "string",
			sig:  "s",
			v:    "hello world",
			want: append([]byte{11, 0, 0, 0}, append([]byte("hello world"), 0)...),
		},
		{
			name: "bool",
			sig:  "b",
			v:    true,
			want: []byte{1, 0, 0, 0},
		},
		{
			name: "int64 array pads after length",
			sig:  "ax",
			v:    []int64{7},
			want: []byte{8, 0, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "empty int64 array keeps padding",
			sig:  "ax",
			v:    []int64{},
			want: []byte{0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "variant",
			sig:  "v",
			v:    MakeVariant(uint32(7)),
			want: []byte{1, 'u', 0, 0, 7, 0, 0, 0},
		},
		{
			name: "signature",
			sig:  "g",
			v:    signature.Signature("ai"),
			want: []byte{2, 'a', 'i', 0},
		},
		{
			name: "body sequence without struct alignment",
			sig:  "yu",
			v:    Struct{uint8(1), uint32(2)},
			want: []byte{1, 0, 0, 0, 2, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeForSignature(NewDBusContext(LE, 0), tt.sig, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data.Bytes())
		})
	}
}

func TestDBusGolden_StructLayout(t *testing.T) {
	data, err := Encode(NewDBusContext(LE, 0), Struct{"hello world!", uint64(42)})
	require.NoError(t, err)
	require.Equal(t, 32, data.Len())

	b := data.Bytes()
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, "hello world!", string(b[4:16]))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0}, b[17:24], "padding before uint64")
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(b[24:32]))
}

func TestDBusGolden_BigEndian(t *testing.T) {
	data, err := Encode(NewDBusContext(BE, 0), uint32(0x01020304))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data.Bytes())
}

func TestGVariantGolden(t *testing.T) {
	tests := []struct {
		name string
		sig  signature.Signature
		v    any
		want []byte
	}{
		{
			name: "string",
			sig:  "s",
			v:    "hello world",
			want: append([]byte("hello world"), 0),
		},
		{
			name: "bool is one byte",
			sig:  "b",
			v:    true,
			want: []byte{1},
		},
		{
			name: "string array with offsets",
			sig:  "as",
			v:    []string{"a", "bc"},
			want: []byte{'a', 0, 'b', 'c', 0, 2, 5},
		},
		{
			name: "fixed array has no offsets",
			sig:  "ai",
			v:    []int32{1, 2},
			want: []byte{1, 0, 0, 0, 2, 0, 0, 0},
		},
		{
			name: "struct with reversed offsets",
			sig:  "(st)",
			v:    Struct{"hello world!", uint64(42)},
			want: append(append([]byte("hello world!"), 0, 0, 0, 0, 42, 0, 0, 0, 0, 0, 0, 0), 13),
		},
		{
			name: "fixed struct padded to alignment",
			sig:  "(iy)",
			v:    Struct{int32(1), uint8(2)},
			want: []byte{1, 0, 0, 0, 2, 0, 0, 0},
		},
		{
			name: "variant carries trailing signature",
			sig:  "v",
			v:    MakeVariant(uint32(7)),
			want: []byte{7, 0, 0, 0, 0, 'u'},
		},
		{
			name: "empty array",
			sig:  "as",
			v:    []string{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeForSignature(NewGVariantContext(LE, 0), tt.sig, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data.Bytes())
		})
	}
}

func TestGVariant_WideOffsets(t *testing.T) {
	long := string(bytes.Repeat([]byte{'x'}, 300))
	v := []string{long, "y"}

	data, err := Encode(NewGVariantContext(LE, 0), v)
	require.NoError(t, err)
	// 301 + 2 bytes of strings, two 2-byte offsets
	assert.Equal(t, 307, data.Len())

	var out []string
	_, err = data.Decode("as", &out)
	require.NoError(t, err)
	assert.Equal(t, v, out)
}

// --- multi-type signatures ---

func TestEncodeSequence(t *testing.T) {
	type body struct {
		Name  string
		Count uint32
	}
	for ctxName, ctx := range contexts() {
		t.Run(ctxName, func(t *testing.T) {
			in := body{Name: "hi", Count: 3}
			data, err := EncodeForSignature(ctx, "su", in)
			require.NoError(t, err)

			var out body
			_, err = data.Decode("su", &out)
			require.NoError(t, err)
			assert.Equal(t, in, out)

			var generic any
			_, err = data.Decode("su", &generic)
			require.NoError(t, err)
			assert.Equal(t, Struct{"hi", uint32(3)}, generic)
		})
	}

	data, err := EncodeForSignature(NewDBusContext(LE, 0), "su", body{Name: "hi", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 12, data.Len())
}

func TestEncodeEmptySignature(t *testing.T) {
	data, err := EncodeForSignature(NewDBusContext(LE, 0), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, data.Len())
}

// --- depth limits ---

func nestVariants(n int) any {
	var v any = uint8(42)
	for i := 0; i < n; i++ {
		v = MakeVariant(v)
	}
	return v
}

// nestedVariantStream builds n nested variants around the byte 42 in the
// primary format.
func nestedVariantStream(n int) []byte {
	var b []byte
	for i := 0; i < n-1; i++ {
		b = append(b, 1, 'v', 0)
	}
	return append(b, 1, 'y', 0, 42)
}

func TestDepth_Variant(t *testing.T) {
	ctx := NewDBusContext(LE, 0)

	data, err := Encode(ctx, nestVariants(signature.MaxVariantDepth))
	require.NoError(t, err, "variants at the limit must encode")
	assert.Equal(t, nestedVariantStream(signature.MaxVariantDepth), data.Bytes())

	var out any
	_, err = Decode(data.Bytes(), ctx, "v", nil, &out)
	require.NoError(t, err)

	_, err = Encode(ctx, nestVariants(signature.MaxVariantDepth+1))
	require.ErrorIs(t, err, ErrMaxDepthExceeded)
	var depthErr *DepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, ContainerVariant, depthErr.Kind)

	_, err = Decode(nestedVariantStream(signature.MaxVariantDepth+1), ctx, "v", nil, &out)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestDepth_GVariant(t *testing.T) {
	ctx := NewGVariantContext(LE, 0)
	_, err := Encode(ctx, nestVariants(signature.MaxVariantDepth))
	require.NoError(t, err)

	_, err = EncodedSize(ctx, nestVariants(signature.MaxVariantDepth+1))
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestDepth_ArraysThroughVariants(t *testing.T) {
	// 32 arrays per signature are legal, but the counters continue
	// through variants.
	var inner any = []byte{1}
	for i := 1; i < signature.MaxArrayDepth; i++ {
		inner = []any{inner}
	}
	v := []Variant{MakeVariant(inner)}

	_, err := Encode(NewDBusContext(LE, 0), v)
	var depthErr *DepthError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, ContainerArray, depthErr.Kind)
}

// --- errors ---

func TestEncodeErrors(t *testing.T) {
	ctx := NewDBusContext(LE, 0)
	tests := []struct {
		name string
		sig  signature.Signature
		v    any
		want error
	}{
		{"kind mismatch", "u", "str", ErrSignatureMismatch},
		{"int width mismatch", "i", int64(1), ErrSignatureMismatch},
		{"struct field count", "(ii)", Struct{int32(1)}, ErrSignatureMismatch},
		{"map for plain array", "as", map[string]string{}, ErrSignatureMismatch},
		{"invalid object path", "o", ObjectPath("/a//b"), ErrIncorrectValue},
		{"NUL in string", "s", "a\x00b", ErrIncorrectValue},
		{"invalid signature value", "g", signature.Signature("a"), ErrInvalidSignature},
		{"invalid signature", "a", []int32{}, ErrInvalidSignature},
		{"nil pointer", "i", (*int32)(nil), ErrIncorrectValue},
		{"zero variant", "v", Variant{}, ErrIncorrectValue},
		{"fd type", "h", 3, ErrSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeForSignature(ctx, tt.sig, tt.v)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_UnsupportedType(t *testing.T) {
	_, err := Encode(NewDBusContext(LE, 0), make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

type failingWriter struct{ after int }

var errSink = errors.New("sink failed")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errSink
	}
	w.after--
	return len(p), nil
}

func TestEncodeTo_SinkError(t *testing.T) {
	_, err := EncodeTo(&failingWriter{after: 1}, NewDBusContext(LE, 0), "(ss)", Struct{"a", "b"})
	assert.ErrorIs(t, err, errSink)
}

func TestEncodeTo_Written(t *testing.T) {
	var buf bytes.Buffer
	w, err := EncodeTo(&buf, NewDBusContext(LE, 0), "ay", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 7, w.Len)
	assert.Equal(t, buf.Len(), w.Len)
	assert.Equal(t, 0, w.Fds.Len())
}
