package handshake

import (
	"fmt"
	"strings"
)

// Mechanism is a SASL authentication mechanism.
type Mechanism uint8

const (
	// MechanismExternal authenticates with credentials the transport
	// already established (the peer's uid).
	MechanismExternal Mechanism = iota

	// MechanismCookieSHA1 authenticates with a shared secret cookie.
	MechanismCookieSHA1

	// MechanismAnonymous requests an unauthenticated session.
	MechanismAnonymous
)

// String returns the mechanism name as used on the wire.
func (m Mechanism) String() string {
	switch m {
	case MechanismExternal:
		return "EXTERNAL"
	case MechanismCookieSHA1:
		return "DBUS_COOKIE_SHA1"
	case MechanismAnonymous:
		return "ANONYMOUS"
	default:
		return "UNKNOWN"
	}
}

// ParseMechanism parses a wire mechanism name.
func ParseMechanism(s string) (Mechanism, error) {
	switch s {
	case "EXTERNAL":
		return MechanismExternal, nil
	case "DBUS_COOKIE_SHA1":
		return MechanismCookieSHA1, nil
	case "ANONYMOUS":
		return MechanismAnonymous, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMechanism, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mechanism) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mechanism) UnmarshalText(text []byte) error {
	parsed, err := ParseMechanism(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// rejectedLine builds the REJECTED reply listing mechs.
func rejectedLine(mechs []Mechanism) string {
	names := make([]string, len(mechs))
	for i, m := range mechs {
		names[i] = m.String()
	}
	return "REJECTED " + strings.Join(names, " ") + "\r\n"
}
