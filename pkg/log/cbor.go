package log

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Log file identification.
const (
	// FileFormat names the format in a FileHeader.
	FileFormat = "buslog"

	// FileVersion is the format version written by this package.
	FileVersion = 1

	// headerTag wraps the header record. The number spells "busg", so log
	// files start with the bytes da 62 75 73 67. The self-describe tag
	// (55799) cannot be used: decoders drop it.
	headerTag = 0x62757367
)

// Header errors.
var (
	ErrNotLogFile         = errors.New("not a bus protocol log")
	ErrUnsupportedVersion = errors.New("unsupported protocol log version")
)

// FileHeader is the first record of a file written by FileLogger. Event
// streams without a header are still readable.
type FileHeader struct {
	Format  string    `cbor:"format"`
	Version uint      `cbor:"version"`
	Created time.Time `cbor:"created"`
}

// Events use integer keys and nanosecond timestamps; encoding is canonical
// so identical events produce identical bytes.
var (
	logEncMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})

	logDecMode = mustDecMode(cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor encoder mode: %v", err))
	}
	return mode
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: cbor decoder mode: %v", err))
	}
	return mode
}

// EncodeEvent encodes a single event.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes a single event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := logDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns an event stream encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns an event stream decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}

// writeHeader writes the tagged header record.
func writeHeader(enc *cbor.Encoder, created time.Time) error {
	return enc.Encode(cbor.Tag{
		Number: headerTag,
		Content: FileHeader{
			Format:  FileFormat,
			Version: FileVersion,
			Created: created,
		},
	})
}

// isHeader reports whether a raw record is a tagged item rather than an
// event map.
func isHeader(raw cbor.RawMessage) bool {
	const majorTag = 6
	return len(raw) > 0 && raw[0]>>5 == majorTag
}

// decodeHeader decodes and checks a tagged header record.
func decodeHeader(raw cbor.RawMessage) (FileHeader, error) {
	var tag cbor.RawTag
	if err := logDecMode.Unmarshal(raw, &tag); err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrNotLogFile, err)
	}
	if tag.Number != headerTag {
		return FileHeader{}, fmt.Errorf("%w: unexpected tag %d", ErrNotLogFile, tag.Number)
	}

	var hdr FileHeader
	if err := logDecMode.Unmarshal(tag.Content, &hdr); err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrNotLogFile, err)
	}
	if hdr.Format != FileFormat {
		return FileHeader{}, fmt.Errorf("%w: format %q", ErrNotLogFile, hdr.Format)
	}
	if hdr.Version == 0 || hdr.Version > FileVersion {
		return FileHeader{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hdr.Version)
	}
	return hdr, nil
}
