package signature

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned for malformed signature text.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMaxDepthExceeded is returned when containers nest deeper than the
	// protocol allows.
	ErrMaxDepthExceeded = errors.New("maximum container depth exceeded")
)

// SyntaxError describes where and why a signature failed to parse.
type SyntaxError struct {
	Signature string
	Pos       int
	Reason    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid signature %q at offset %d: %s", e.Signature, e.Pos, e.Reason)
}

// Is makes SyntaxError match ErrInvalidSignature.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidSignature
}

// Parse validates text and returns it as a Signature. The empty string is a
// valid signature. Multiple complete types are allowed (as in message
// bodies).
func Parse(text string) (Signature, error) {
	if len(text) > MaxLength {
		return Empty, &SyntaxError{Signature: text, Pos: MaxLength, Reason: "longer than 255 bytes"}
	}
	p := parser{text: text}
	for p.pos < len(text) {
		if err := p.completeType(0, 0); err != nil {
			return Empty, err
		}
	}
	return Signature(text), nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(text string) Signature {
	s, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseSingle parses text and requires it to be exactly one complete type,
// as carried by variants.
func ParseSingle(text string) (Signature, error) {
	s, err := Parse(text)
	if err != nil {
		return Empty, err
	}
	if !s.IsSingle() {
		return Empty, &SyntaxError{Signature: text, Pos: 0, Reason: "not a single complete type"}
	}
	return s, nil
}

type parser struct {
	text string
	pos  int
}

func (p *parser) fail(reason string) error {
	return &SyntaxError{Signature: p.text, Pos: p.pos, Reason: reason}
}

// completeType consumes one complete type at p.pos.
func (p *parser) completeType(arrays, structs int) error {
	if p.pos >= len(p.text) {
		return p.fail("unexpected end of signature")
	}
	c := Code(p.text[p.pos])
	switch {
	case c.IsBasic(), c == Variant:
		p.pos++
		return nil

	case c == Array:
		arrays++
		if arrays > MaxArrayDepth {
			return fmt.Errorf("%w: %d nested arrays in %q", ErrMaxDepthExceeded, arrays, p.text)
		}
		if arrays+structs > MaxTotalDepth {
			return fmt.Errorf("%w: %d nested containers in %q", ErrMaxDepthExceeded, arrays+structs, p.text)
		}
		p.pos++
		if p.pos < len(p.text) && Code(p.text[p.pos]) == DictEntryStart {
			return p.dictEntry(arrays, structs)
		}
		return p.completeType(arrays, structs)

	case c == StructStart:
		structs++
		if structs > MaxStructDepth {
			return fmt.Errorf("%w: %d nested structs in %q", ErrMaxDepthExceeded, structs, p.text)
		}
		if arrays+structs > MaxTotalDepth {
			return fmt.Errorf("%w: %d nested containers in %q", ErrMaxDepthExceeded, arrays+structs, p.text)
		}
		p.pos++
		fields := 0
		for {
			if p.pos >= len(p.text) {
				return p.fail("unterminated struct")
			}
			if Code(p.text[p.pos]) == StructEnd {
				if fields == 0 {
					return p.fail("empty struct")
				}
				p.pos++
				return nil
			}
			if err := p.completeType(arrays, structs); err != nil {
				return err
			}
			fields++
		}

	case c == DictEntryStart:
		return p.fail("dict-entry outside of array")

	case c == StructEnd || c == DictEntryEnd:
		return p.fail("unbalanced " + c.String())

	default:
		return p.fail(fmt.Sprintf("unknown type code %q", rune(c)))
	}
}

// dictEntry consumes {KV} at p.pos.
func (p *parser) dictEntry(arrays, structs int) error {
	structs++
	if structs > MaxStructDepth {
		return fmt.Errorf("%w: %d nested structs in %q", ErrMaxDepthExceeded, structs, p.text)
	}
	p.pos++ // '{'
	if p.pos >= len(p.text) {
		return p.fail("unterminated dict-entry")
	}
	if !Code(p.text[p.pos]).IsBasic() {
		return p.fail("dict-entry key must be a basic type")
	}
	p.pos++
	if p.pos >= len(p.text) || Code(p.text[p.pos]) == DictEntryEnd {
		return p.fail("dict-entry needs exactly two types")
	}
	if err := p.completeType(arrays, structs); err != nil {
		return err
	}
	if p.pos >= len(p.text) {
		return p.fail("unterminated dict-entry")
	}
	if Code(p.text[p.pos]) != DictEntryEnd {
		return p.fail("dict-entry needs exactly two types")
	}
	p.pos++
	return nil
}
