// Command bus-log is a tool for viewing and analyzing bus protocol log files.
//
// Log files are created by the protocol logging infrastructure when running
// bus-handshake or bus-codec with the -protocol-log flag.
//
// Usage:
//
//	bus-log <command> [flags] <file.blog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	bus-log view handshake.blog
//
//	# View only the server side of the authentication exchange
//	bus-log view --layer auth --role server handshake.blog
//
//	# Export to JSONL
//	bus-log export --format jsonl handshake.blog
//
//	# Filter by connection and save to new file
//	bus-log filter --conn-id abc12345 -o filtered.blog handshake.blog
//
//	# Show statistics
//	bus-log stats handshake.blog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mash-protocol/busgo/cmd/bus-log/commands"
)

// command is one bus-log subcommand.
type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commandList = []command{
	{"view", "View log file in human-readable format", runView},
	{"export", "Export log file to JSON or CSV format", runExport},
	{"filter", "Filter log file and write to new file", runFilter},
	{"stats", "Show statistics about the log file", runStats},
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "bus-log - Bus Protocol Log Analyzer")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  bus-log <command> [flags] <file.blog>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commandList {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, `Use "bus-log <command> -help" for more information about a command.`)
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "-h", "-help", "--help", "help":
		printUsage(os.Stdout)
		return
	}

	for _, c := range commandList {
		if c.name != name {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
	printUsage(os.Stderr)
	os.Exit(1)
}

// newFlagSet returns a flag set whose usage names the subcommand.
func newFlagSet(name, summary, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "bus-log %s - %s\n\nUsage:\n  %s\n", name, summary, synopsis)
		var hasFlags bool
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			fmt.Fprintln(os.Stderr, "\nFlags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

// parseWithPath parses args and returns the single positional log file.
func parseWithPath(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", errors.New("log file path required")
	}
	return fs.Arg(0), nil
}

// eventFlags are the selection flags shared by view and filter.
type eventFlags struct {
	layer, direction, category, role *string
}

func addEventFlags(fs *flag.FlagSet) eventFlags {
	return eventFlags{
		layer:     fs.String("layer", "", "Filter by layer (transport, auth, wire)"),
		direction: fs.String("direction", "", "Filter by direction (in, out)"),
		category:  fs.String("category", "", "Filter by category (message, state, error)"),
		role:      fs.String("role", "", "Filter by local role (client, server)"),
	}
}

func (f eventFlags) viewFilter() (commands.ViewFilter, error) {
	var filter commands.ViewFilter
	if *f.layer != "" {
		l, err := commands.ParseLayerFlag(*f.layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if *f.direction != "" {
		d, err := commands.ParseDirectionFlag(*f.direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if *f.category != "" {
		c, err := commands.ParseCategoryFlag(*f.category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if *f.role != "" {
		r, err := commands.ParseRoleFlag(*f.role)
		if err != nil {
			return filter, err
		}
		filter.Role = &r
	}
	return filter, nil
}

func runView(args []string) error {
	fs := newFlagSet("view", "View log file in human-readable format", "bus-log view [flags] <file.blog>")
	sel := addEventFlags(fs)
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}

	filter, err := sel.viewFilter()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export log file to JSON or CSV format", "bus-log export [flags] <file.blog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Filter log file and write to new file", "bus-log filter -o <out.blog> [flags] <file.blog>")
	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	sel := addEventFlags(fs)
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*output) == "" {
		fs.Usage()
		return errors.New("output file (-o) required")
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:    *output,
		ConnID:    *connID,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
		Layer:     *sel.layer,
		Direction: *sel.direction,
		Category:  *sel.category,
		Role:      *sel.role,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
	return nil
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show statistics about the log file", "bus-log stats <file.blog>")
	path, err := parseWithPath(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, os.Stdout)
}
