package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a CBOR log file. A new or empty file gets a
// FileHeader first; existing files are appended to as they are.
// It is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// NewFileLogger opens path for appending, creating it with mode 0644 if
// needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open protocol log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat protocol log: %w", err)
	}

	enc := NewEncoder(f)
	if info.Size() == 0 {
		if err := writeHeader(enc, time.Now()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write protocol log header: %w", err)
		}
	}

	return &FileLogger{
		path:    path,
		file:    f,
		encoder: enc,
	}, nil
}

// Log appends event. Write failures are dropped; logging never fails the
// connection it observes.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Path returns the path of the log file.
func (l *FileLogger) Path() string {
	return l.path
}

// Close closes the file. Later calls to Log and Close do nothing.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
