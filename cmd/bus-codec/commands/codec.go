// Package commands implements the bus-codec CLI commands.
package commands

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/signature"
	"github.com/mash-protocol/busgo/pkg/variant"
	"gopkg.in/yaml.v3"
)

// Options select the encoding context and where value events go.
type Options struct {
	Format   variant.Format
	Order    binary.ByteOrder
	Position int

	// ProtocolLogger receives a WIRE event per encode and decode.
	// If nil, protocol logging is disabled.
	ProtocolLogger log.Logger

	// ConnectionID tags protocol log events.
	ConnectionID string
}

// DefaultOptions returns little-endian D-Bus options at position 0.
func DefaultOptions() Options {
	return Options{Format: variant.FormatDBus, Order: variant.LE}
}

// Context returns the encoding context.
func (o Options) Context() variant.Context {
	return variant.NewContext(o.Format, o.Order, o.Position)
}

// ParseFormatFlag parses "dbus" or "gvariant" (case-insensitive).
func ParseFormatFlag(s string) (variant.Format, error) {
	switch strings.ToLower(s) {
	case "dbus":
		return variant.FormatDBus, nil
	case "gvariant":
		return variant.FormatGVariant, nil
	default:
		return 0, fmt.Errorf("invalid format: %s (must be dbus or gvariant)", s)
	}
}

// ParseOrderFlag parses "le" or "be" (case-insensitive).
func ParseOrderFlag(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "le", "little":
		return variant.LE, nil
	case "be", "big":
		return variant.BE, nil
	default:
		return nil, fmt.Errorf("invalid byte order: %s (must be le or be)", s)
	}
}

func orderName(o binary.ByteOrder) string {
	if o == variant.BE {
		return "BE"
	}
	return "LE"
}

// parseValue parses YAML text and converts it for sig.
func parseValue(sig signature.Signature, text string) (any, error) {
	if sig.IsEmpty() {
		return nil, nil
	}
	var raw any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse value: %w", err)
	}
	return FromYAML(sig, raw)
}

// RunEncode encodes the YAML value text as sig and writes the hex encoding
// to w. Descriptors referenced by the value are duplicated for the
// duration of the call.
func RunEncode(sigText, valueText string, opts Options, w io.Writer) error {
	sig, err := signature.Parse(sigText)
	if err != nil {
		return err
	}
	v, err := parseValue(sig, valueText)
	if err != nil {
		return err
	}

	data, err := variant.EncodeForSignature(opts.Context(), sig, v)
	if err != nil {
		logValueError(opts, log.DirectionOut, err, "encode "+sig.String())
		return err
	}
	defer data.Close()

	logValue(opts, log.DirectionOut, sig, data.Len(), data.Fds().Len())
	fmt.Fprintln(w, hex.EncodeToString(data.Bytes()))
	if n := data.Fds().Len(); n > 0 {
		fmt.Fprintf(w, "fds: %d\n", n)
	}
	return nil
}

// RunDecode decodes hex-encoded data as sig and writes the value as YAML.
func RunDecode(sigText, hexText string, opts Options, w io.Writer) error {
	sig, err := signature.Parse(sigText)
	if err != nil {
		return err
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(hexText), ""))
	if err != nil {
		return fmt.Errorf("invalid hex input: %w", err)
	}

	// A multi-type signature decodes into a Struct, one field per type.
	var out any
	var n int
	if len(sig.Split()) > 1 {
		var fields variant.Struct
		n, err = variant.Decode(b, opts.Context(), sig, nil, &fields)
		out = fields
	} else {
		n, err = variant.Decode(b, opts.Context(), sig, nil, &out)
	}
	if err != nil {
		logValueError(opts, log.DirectionIn, err, "decode "+sig.String())
		return err
	}
	logValue(opts, log.DirectionIn, sig, n, 0)

	text, err := yaml.Marshal(ToYAML(out))
	if err != nil {
		return fmt.Errorf("failed to format value: %w", err)
	}
	w.Write(text)
	if n < len(b) {
		fmt.Fprintf(w, "# %d trailing bytes not consumed\n", len(b)-n)
	}
	return nil
}

// RunSize reports the encoded size of the YAML value text without
// duplicating descriptors.
func RunSize(sigText, valueText string, opts Options, w io.Writer) error {
	sig, err := signature.Parse(sigText)
	if err != nil {
		return err
	}
	v, err := parseValue(sig, valueText)
	if err != nil {
		return err
	}
	size, err := variant.EncodedSizeForSignature(opts.Context(), sig, v)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "size: %d\nfds: %d\n", size.Len, size.NumFds)
	return nil
}

// RunSignature describes a signature: its complete types and their
// alignment in both formats.
func RunSignature(sigText string, w io.Writer) error {
	sig, err := signature.Parse(sigText)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "signature: %q\n", sig.String())
	fmt.Fprintf(w, "single: %t\n", sig.IsSingle())
	for _, t := range sig.Split() {
		fmt.Fprintf(w, "  %-16s dbus-align=%d gvariant-align=%d\n",
			t, variant.Alignment(t, variant.FormatDBus), variant.Alignment(t, variant.FormatGVariant))
		if fields := t.Fields(); len(fields) > 0 {
			parts := make([]string, len(fields))
			for i, f := range fields {
				parts[i] = f.String()
			}
			fmt.Fprintf(w, "    fields: %s\n", strings.Join(parts, " "))
		} else if elem := t.Elem(); !elem.IsEmpty() {
			fmt.Fprintf(w, "    elem: %s\n", elem)
		}
	}
	return nil
}

func logValue(opts Options, dir log.Direction, sig signature.Signature, size, numFds int) {
	if opts.ProtocolLogger == nil {
		return
	}
	opts.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: opts.ConnectionID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Value: &log.ValueEvent{
			Signature: sig.String(),
			Format:    opts.Format.String(),
			ByteOrder: orderName(opts.Order),
			Size:      size,
			NumFds:    numFds,
		},
	})
}

func logValueError(opts Options, dir log.Direction, err error, context string) {
	if opts.ProtocolLogger == nil {
		return
	}
	opts.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: opts.ConnectionID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: context,
		},
	})
}
