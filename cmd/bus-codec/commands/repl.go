package commands

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// REPL is the interactive mode of bus-codec.
type REPL struct {
	opts Options
	rl   *readline.Instance
	out  io.Writer
}

// NewREPL creates an interactive session reading from the terminal.
func NewREPL(opts Options) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "codec> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &REPL{opts: opts, rl: rl, out: rl.Stdout()}, nil
}

// newScriptREPL creates a session without a terminal, for tests.
func newScriptREPL(opts Options, out io.Writer) *REPL {
	return &REPL{opts: opts, out: out}
}

// Run reads commands until quit or end of input.
func (r *REPL) Run() {
	defer r.rl.Close()

	r.printHelp()
	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		if quit := r.Execute(line); quit {
			return
		}
	}
}

// Execute runs one command line and reports whether the session should end.
func (r *REPL) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)
	sig, value, _ := strings.Cut(rest, " ")
	value = strings.TrimSpace(value)

	var err error
	switch strings.ToLower(cmd) {
	case "help", "?":
		r.printHelp()

	case "encode", "e":
		err = RunEncode(sig, value, r.opts, r.out)

	case "decode", "d":
		err = RunDecode(sig, value, r.opts, r.out)

	case "size", "s":
		err = RunSize(sig, value, r.opts, r.out)

	case "sig", "signature":
		err = RunSignature(sig, r.out)

	case "format":
		var f variant.Format
		if f, err = ParseFormatFlag(sig); err == nil {
			r.opts.Format = f
		}

	case "order":
		var o binary.ByteOrder
		if o, err = ParseOrderFlag(sig); err == nil {
			r.opts.Order = o
		}

	case "pos", "position":
		var pos int
		pos, err = strconv.Atoi(sig)
		switch {
		case err != nil:
		case pos < 0:
			err = fmt.Errorf("position must not be negative")
		default:
			r.opts.Position = pos
		}

	case "status":
		fmt.Fprintf(r.out, "format=%s order=%s position=%d\n",
			r.opts.Format, orderName(r.opts.Order), r.opts.Position)

	case "quit", "exit", "q":
		fmt.Fprintln(r.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, `
Bus Codec Commands:
  Values:
    encode <sig> <yaml>    - Encode a value, print hex
    decode <sig> <hex>     - Decode hex, print the value as YAML
    size <sig> <yaml>      - Print the encoded size and descriptor count
    sig <sig>              - Describe a signature

  Context:
    format dbus|gvariant   - Select the wire format
    order le|be            - Select the byte order
    pos <n>                - Set the stream position of the first byte
    status                 - Show the current context

  General:
    help                   - Show this help
    quit                   - Exit

  Examples:
    encode a{sv} {answer: 42, name: bus}
    encode (sv) [path, {signature: o, value: /org/example}]
    decode as 0e0000000100000061000000010000006200`)
}
