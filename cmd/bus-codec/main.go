// Command bus-codec encodes, decodes and inspects bus values from the
// command line.
//
// Values are written as YAML: arrays are sequences, dictionaries are
// mappings, structs are sequences with one element per field and variants
// are mappings with "signature" and "value" keys (or plain scalars, whose
// signature is inferred). Encoded data is hex.
//
// Usage:
//
//	bus-codec <command> [flags] <signature> [value|hex]
//
// Commands:
//
//	encode     Encode a YAML value, print hex
//	decode     Decode hex, print YAML
//	size       Print the encoded size of a YAML value
//	signature  Describe a signature
//	repl       Interactive mode
//
// Flags shared by all commands:
//
//	-format string        Wire format: dbus, gvariant (default "dbus")
//	-order string         Byte order: le, be (default "le")
//	-pos int              Stream position of the first byte (default 0)
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// When the value argument is omitted or "-", it is read from stdin.
//
// Examples:
//
//	bus-codec encode 'a{sv}' '{answer: 42, name: bus}'
//	bus-codec decode -format gvariant s 686900
//	bus-codec size '(yu)' '[1, 2]'
//	bus-codec signature 'a{sa{sv}}'
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mash-protocol/busgo/cmd/bus-codec/commands"
	buslog "github.com/mash-protocol/busgo/pkg/log"
)

const usage = `bus-codec - Bus Value Codec

Usage:
  bus-codec <command> [flags] <signature> [value|hex]

Commands:
  encode     Encode a YAML value, print hex
  decode     Decode hex, print YAML
  size       Print the encoded size of a YAML value
  signature  Describe a signature
  repl       Interactive mode

Use "bus-codec <command> -help" for more information about a command.
`

// commonFlags are registered on every subcommand.
type commonFlags struct {
	format      string
	order       string
	pos         int
	protocolLog string
	logLevel    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "dbus", "Wire format: dbus, gvariant")
	fs.StringVar(&c.order, "order", "le", "Byte order: le, be")
	fs.IntVar(&c.pos, "pos", 0, "Stream position of the first byte")
	fs.StringVar(&c.protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// options builds the codec options. The returned close function flushes
// the protocol log.
func (c *commonFlags) options(stderr io.Writer) (commands.Options, func(), error) {
	logger, err := setupLogging(c.logLevel, stderr)
	if err != nil {
		return commands.Options{}, nil, err
	}

	opts := commands.DefaultOptions()
	if opts.Format, err = commands.ParseFormatFlag(c.format); err != nil {
		return opts, nil, err
	}
	if opts.Order, err = commands.ParseOrderFlag(c.order); err != nil {
		return opts, nil, err
	}
	if c.pos < 0 {
		return opts, nil, fmt.Errorf("position must not be negative")
	}
	opts.Position = c.pos
	opts.ConnectionID = uuid.NewString()

	sinks := []buslog.Logger{buslog.NewSlogAdapter(logger)}
	closeFn := func() {}
	if c.protocolLog != "" {
		fileLogger, err := buslog.NewFileLogger(c.protocolLog)
		if err != nil {
			return opts, nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		logger.Info("Protocol logging enabled", "path", fileLogger.Path())
		sinks = append(sinks, fileLogger)
		closeFn = func() { fileLogger.Close() }
	}
	opts.ProtocolLogger = buslog.NewMultiLogger(sinks...)
	return opts, closeFn, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "encode":
		runValue("encode", "Encode a YAML value, print hex", args, commands.RunEncode)
	case "decode":
		runValue("decode", "Decode hex, print YAML", args, commands.RunDecode)
	case "size":
		runValue("size", "Print the encoded size of a YAML value", args, commands.RunSize)
	case "signature", "sig":
		runSignature(args)
	case "repl":
		runREPL(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// setupLogging returns the operational logger for level.
func setupLogging(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

type valueCommand func(sig, input string, opts commands.Options, w io.Writer) error

func runValue(name, summary string, args []string, run valueCommand) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bus-codec %s - %s

Usage:
  bus-codec %s [flags] <signature> [value|-]

Flags:
`, name, summary, name)
		fs.PrintDefaults()
	}
	var common commonFlags
	common.register(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: signature required")
		fs.Usage()
		os.Exit(1)
	}

	input, err := readInput(fs.Arg(1))
	if err != nil {
		fail(err)
	}

	opts, closeLog, err := common.options(os.Stderr)
	if err != nil {
		fail(err)
	}
	err = run(fs.Arg(0), input, opts, os.Stdout)
	closeLog()
	if err != nil {
		fail(err)
	}
}

// readInput returns arg, or stdin when arg is empty or "-".
func readInput(arg string) (string, error) {
	if arg != "" && arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func runSignature(args []string) {
	fs := flag.NewFlagSet("signature", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bus-codec signature - Describe a signature

Usage:
  bus-codec signature <signature>

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: signature required")
		fs.Usage()
		os.Exit(1)
	}
	if err := commands.RunSignature(fs.Arg(0), os.Stdout); err != nil {
		fail(err)
	}
}

func runREPL(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `bus-codec repl - Interactive mode

Usage:
  bus-codec repl [flags]

Flags:
`)
		fs.PrintDefaults()
	}
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	opts, closeLog, err := common.options(os.Stderr)
	if err != nil {
		fail(err)
	}
	defer closeLog()

	repl, err := commands.NewREPL(opts)
	if err != nil {
		fail(err)
	}
	repl.Run()
}
