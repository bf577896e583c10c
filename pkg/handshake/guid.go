package handshake

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// GUID identifies a server instance. On the wire it is 32 lowercase hex
// digits.
type GUID [16]byte

// NewGUID returns a random GUID.
func NewGUID() GUID {
	return GUID(uuid.New())
}

// ParseGUID parses 32 hex digits.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	if len(s) != 2*len(g) {
		return GUID{}, fmt.Errorf("%w: %q has %d characters, want 32", ErrInvalidGUID, s, len(s))
	}
	if _, err := hex.Decode(g[:], []byte(s)); err != nil {
		return GUID{}, fmt.Errorf("%w: %q: %v", ErrInvalidGUID, s, err)
	}
	return g, nil
}

// String returns the wire form.
func (g GUID) String() string {
	return hex.EncodeToString(g[:])
}

// IsZero reports whether g is unset.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := ParseGUID(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
