package main

import (
	"fmt"
	"os"

	"github.com/mash-protocol/busgo/pkg/handshake"
	"github.com/mash-protocol/busgo/pkg/transport"
	"gopkg.in/yaml.v3"
)

// Config is the bus-handshake configuration file.
//
// Example:
//
//	socket: socketpair
//	client:
//	  negotiateUnixFD: true
//	server:
//	  guid: 1d1f3d6e0c8a4c5d9b2b8f7a6e5d4c3b
//	  usePeerCredentials: true
//	  mechanisms: [EXTERNAL, ANONYMOUS]
//	transport:
//	  chunkSize: 4096
type Config struct {
	// Socket selects the connected pair: "pipe" or "socketpair".
	Socket string `yaml:"socket"`

	Client    handshake.ClientConfig `yaml:"client"`
	Server    handshake.ServerConfig `yaml:"server"`
	Transport transport.SenderConfig `yaml:"transport"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Socket:    defaultSocket,
		Client:    handshake.DefaultClientConfig(),
		Server:    handshake.DefaultServerConfig(),
		Transport: transport.DefaultSenderConfig(),
	}
}

// LoadConfig reads path over the defaults. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Socket {
	case socketPipe, socketPair:
	default:
		return fmt.Errorf("invalid socket: %q (use: %s, %s)", c.Socket, socketPipe, socketPair)
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	return nil
}
