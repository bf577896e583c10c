package handshake

import (
	"fmt"
	"slices"

	"github.com/mash-protocol/busgo/pkg/log"
)

// DefaultMaxLineLength bounds a single handshake line, terminator included.
const DefaultMaxLineLength = 16384

// ClientConfig configures a ClientHandshake.
type ClientConfig struct {
	// UID is the user id presented with AUTH EXTERNAL.
	UID uint32 `yaml:"uid"`

	// NegotiateUnixFD requests descriptor passing after authentication.
	// It is skipped on sockets that cannot carry descriptors.
	NegotiateUnixFD bool `yaml:"negotiateUnixFD"`

	// MaxLineLength bounds lines received from the server.
	MaxLineLength int `yaml:"maxLineLength"`

	// ConnectionID tags protocol log events.
	ConnectionID string `yaml:"connectionID"`

	// ProtocolLogger receives every line and step change.
	// If nil, protocol logging is disabled.
	ProtocolLogger log.Logger `yaml:"-"`
}

// DefaultClientConfig returns a client configuration for the current user.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UID:             CurrentUID(),
		NegotiateUnixFD: true,
		MaxLineLength:   DefaultMaxLineLength,
	}
}

// Validate checks if the client config is valid.
func (c *ClientConfig) Validate() error {
	if c.MaxLineLength <= 0 {
		return fmt.Errorf("%w: max line length %d", ErrInvalidConfig, c.MaxLineLength)
	}
	return nil
}

// ServerConfig configures a ServerHandshake.
type ServerConfig struct {
	// GUID is sent to the client in the OK reply.
	GUID GUID `yaml:"guid"`

	// ClientUID is the uid the client must present.
	ClientUID uint32 `yaml:"clientUID"`

	// UsePeerCredentials replaces ClientUID with the uid the kernel
	// reports for the peer, when the socket can tell.
	UsePeerCredentials bool `yaml:"usePeerCredentials"`

	// Mechanisms are advertised in REJECTED replies. Only EXTERNAL is
	// implemented, so it must be listed.
	Mechanisms []Mechanism `yaml:"mechanisms"`

	// AllowUnixFD agrees to descriptor passing when the client asks for
	// it and the socket supports it.
	AllowUnixFD bool `yaml:"allowUnixFD"`

	// MaxLineLength bounds lines received from the client.
	MaxLineLength int `yaml:"maxLineLength"`

	// ConnectionID tags protocol log events.
	ConnectionID string `yaml:"connectionID"`

	// ProtocolLogger receives every line and step change.
	// If nil, protocol logging is disabled.
	ProtocolLogger log.Logger `yaml:"-"`
}

// DefaultServerConfig returns a server configuration with a fresh GUID
// expecting clients of the current user.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		GUID:          NewGUID(),
		ClientUID:     CurrentUID(),
		Mechanisms:    []Mechanism{MechanismExternal},
		AllowUnixFD:   true,
		MaxLineLength: DefaultMaxLineLength,
	}
}

// Validate checks if the server config is valid.
func (c *ServerConfig) Validate() error {
	if c.GUID.IsZero() {
		return fmt.Errorf("%w: guid is not set", ErrInvalidConfig)
	}
	if !slices.Contains(c.Mechanisms, MechanismExternal) {
		return fmt.Errorf("%w: mechanisms must include EXTERNAL", ErrInvalidConfig)
	}
	if c.MaxLineLength <= 0 {
		return fmt.Errorf("%w: max line length %d", ErrInvalidConfig, c.MaxLineLength)
	}
	return nil
}
