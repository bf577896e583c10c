package transport

import (
	"errors"
	"fmt"
)

// Payload limits.
const (
	// DefaultMaxPayloadSize is the largest payload a Sender or Receiver
	// accepts (128 MiB, the bus message limit).
	DefaultMaxPayloadSize = 1 << 27

	// DefaultChunkSize is the most bytes handed to one Send call (64 KB).
	DefaultChunkSize = 65536
)

// Config errors.
var (
	ErrInvalidMaxPayloadSize = errors.New("max payload size must be positive")
	ErrInvalidChunkSize      = errors.New("chunk size must be positive")
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	// MaxPayloadSize rejects larger payloads before anything is sent.
	MaxPayloadSize int `yaml:"maxPayloadSize"`

	// ChunkSize bounds the bytes offered to the socket per Send call.
	ChunkSize int `yaml:"chunkSize"`
}

// DefaultSenderConfig returns the default sender configuration.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		MaxPayloadSize: DefaultMaxPayloadSize,
		ChunkSize:      DefaultChunkSize,
	}
}

// Validate checks the configuration.
func (c SenderConfig) Validate() error {
	if c.MaxPayloadSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxPayloadSize, c.MaxPayloadSize)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	return nil
}
