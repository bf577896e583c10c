package variant

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mash-protocol/busgo/pkg/signature"
)

// Encoding and decoding errors.
var (
	// ErrSignatureMismatch indicates the value's shape does not fit the signature.
	ErrSignatureMismatch = errors.New("value does not match signature")

	// ErrUnsupportedType indicates a Go type with no wire representation.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnexpectedEOF indicates the data ended before the signature was satisfied.
	ErrUnexpectedEOF = errors.New("unexpected end of data")

	// ErrFdIndexOutOfRange indicates a descriptor index beyond the fd table.
	ErrFdIndexOutOfRange = errors.New("fd index out of range")

	// ErrIncorrectValue indicates a value that violates the wire rules
	// (bad boolean, missing NUL, invalid UTF-8, invalid object path, ...).
	ErrIncorrectValue = errors.New("incorrect value")

	// ErrInvalidFraming indicates inconsistent GVariant framing offsets.
	ErrInvalidFraming = errors.New("invalid framing offsets")

	// ErrFdsUnsupported indicates descriptor passing on a platform without it.
	ErrFdsUnsupported = errors.New("file descriptor passing not supported on this platform")

	// ErrFdDup indicates a descriptor could not be duplicated for transfer.
	ErrFdDup = errors.New("failed to duplicate file descriptor")

	// ErrInvalidTarget indicates a decode target that is not a non-nil pointer.
	ErrInvalidTarget = errors.New("decode target must be a non-nil pointer")

	// ErrMaxDepthExceeded is shared with package signature.
	ErrMaxDepthExceeded = signature.ErrMaxDepthExceeded

	// ErrInvalidSignature is shared with package signature.
	ErrInvalidSignature = signature.ErrInvalidSignature
)

func mismatch(sig signature.Signature, t reflect.Type) error {
	return fmt.Errorf("%w: %q cannot hold %v", ErrSignatureMismatch, sig, t)
}
