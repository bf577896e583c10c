package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/busgo/pkg/signature"
)

func TestDecodeErrors(t *testing.T) {
	dbus := NewDBusContext(LE, 0)
	gv := NewGVariantContext(LE, 0)

	tests := []struct {
		name string
		ctx  Context
		sig  signature.Signature
		data []byte
		want error
	}{
		{"short uint32", dbus, "u", []byte{1, 0}, ErrUnexpectedEOF},
		{"bad bool", dbus, "b", []byte{2, 0, 0, 0}, ErrIncorrectValue},
		{"missing NUL", dbus, "s", []byte{1, 0, 0, 0, 'a', 'x'}, ErrIncorrectValue},
		{"string past end", dbus, "s", []byte{9, 0, 0, 0, 'a', 0}, ErrUnexpectedEOF},
		{"invalid UTF-8", dbus, "s", []byte{1, 0, 0, 0, 0xff, 0}, ErrIncorrectValue},
		{"non-zero padding", dbus, "(yu)", []byte{1, 9, 0, 0, 1, 0, 0, 0}, ErrIncorrectValue},
		{"array past end", dbus, "ay", []byte{8, 0, 0, 0, 1}, ErrUnexpectedEOF},
		{"array too long", dbus, "ay", []byte{0, 0, 0, 8}, ErrIncorrectValue},
		{"array overrun", dbus, "au", []byte{2, 0, 0, 0, 1, 0, 0, 0}, ErrIncorrectValue},
		{"invalid variant signature", dbus, "v", []byte{2, 'i', 'i', 0}, ErrIncorrectValue},
		{"bad signature", dbus, "g", []byte{1, 'z', 0}, ErrInvalidSignature},
		{"gvariant wrong fixed size", gv, "u", []byte{1, 2, 3}, ErrInvalidFraming},
		{"gvariant offset beyond data", gv, "as", []byte{'a', 0, 9}, ErrInvalidFraming},
		{"gvariant variant without separator", gv, "v", []byte{1, 2}, ErrInvalidFraming},
		{"gvariant string without NUL", gv, "s", []byte{'a'}, ErrIncorrectValue},
		{"gvariant ragged fixed array", gv, "ai", []byte{1, 0, 0, 0, 2}, ErrInvalidFraming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out any
			_, err := Decode(tt.data, tt.ctx, tt.sig, nil, &out)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_InvalidSignatureConsumesNothing(t *testing.T) {
	var out any
	n, err := Decode([]byte{1, 2, 3, 4}, NewDBusContext(LE, 0), "a", nil, &out)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, 0, n)
}

func TestDecode_InvalidTarget(t *testing.T) {
	var out uint32
	_, err := Decode([]byte{1, 0, 0, 0}, NewDBusContext(LE, 0), "u", nil, out)
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = Decode([]byte{1, 0, 0, 0}, NewDBusContext(LE, 0), "u", nil, (*uint32)(nil))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestDecode_TargetMismatch(t *testing.T) {
	var out string
	_, err := Decode([]byte{1, 0, 0, 0}, NewDBusContext(LE, 0), "u", nil, &out)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestDecode_ConsumedBytes(t *testing.T) {
	ctx := NewDBusContext(LE, 0)
	data := []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0xff, 0xff}

	var s string
	n, err := Decode(data, ctx, "s", nil, &s)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "abc", s)
}

func TestDecode_VariantIntoConcreteTarget(t *testing.T) {
	data, err := Encode(NewDBusContext(LE, 0), MakeVariant(uint32(9)))
	require.NoError(t, err)

	var n uint32
	_, err = data.Decode("v", &n)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), n)
}

func TestDecode_PointerFields(t *testing.T) {
	type holder struct {
		Name *string
	}
	data, err := Encode(NewDBusContext(LE, 0), Struct{"x"})
	require.NoError(t, err)

	var out holder
	_, err = data.Decode("(s)", &out)
	require.NoError(t, err)
	require.NotNil(t, out.Name)
	assert.Equal(t, "x", *out.Name)
}

func TestDecode_FdIndexOutOfRange(t *testing.T) {
	for name, ctx := range contexts() {
		t.Run(name, func(t *testing.T) {
			order := ctx.ByteOrder()
			b := make([]byte, 4)
			order.PutUint32(b, 1)

			var fd UnixFD
			_, err := Decode(b, ctx, "h", NewOwnedFds(), &fd)
			assert.ErrorIs(t, err, ErrFdIndexOutOfRange)

			_, err = Decode(b, ctx, "h", nil, &fd)
			assert.ErrorIs(t, err, ErrFdIndexOutOfRange)
		})
	}
}
