package handshake

import (
	"errors"
	"fmt"
)

// ErrHandshake is the root of all fatal handshake errors.
var ErrHandshake = errors.New("handshake failed")

// Fatal protocol errors.
var (
	ErrUnexpectedReply = fmt.Errorf("%w: unexpected reply", ErrHandshake)
	ErrNotNul          = fmt.Errorf("%w: first byte is not NUL", ErrHandshake)
	ErrBeginBeforeAuth = fmt.Errorf("%w: BEGIN before authentication", ErrHandshake)
	ErrInvalidUID      = fmt.Errorf("%w: invalid uid", ErrHandshake)
	ErrLineTooLong     = fmt.Errorf("%w: line too long", ErrHandshake)
)

// Other errors.
var (
	// ErrInvalidGUID is returned for text that is not 32 hex digits.
	ErrInvalidGUID = errors.New("invalid guid")

	// ErrUnknownMechanism is returned for an unsupported mechanism name.
	ErrUnknownMechanism = errors.New("unknown mechanism")

	// ErrNotDone is returned by TryFinish before the handshake completed.
	ErrNotDone = errors.New("handshake not done")

	// ErrInvalidConfig is returned for configurations that fail Validate.
	ErrInvalidConfig = errors.New("invalid handshake config")
)
