// Command jigna-log is a tool for viewing and analyzing jigna protocol log
// files.
//
// Log files are written by jigna-serve when started with the -protocol-log
// flag.
//
// Usage:
//
//	jigna-log <command> [flags] <file.jlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	jigna-log view serve.jlog
//
//	# View only edits that were dropped as echoes
//	jigna-log view -category drop -drop-reason echo serve.jlog
//
//	# Everything that touched one model
//	jigna-log view -model 9b2c4f1e-1a9e-4a57-8e51-4f0c1d2e3a4b serve.jlog
//
//	# Export to CSV
//	jigna-log export -format csv -o serve.csv serve.jlog
//
//	# Filter by connection and save to new file
//	jigna-log filter -conn-id abc12345 -o conn.jlog serve.jlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jigna-sync/jigna-go/cmd/jigna-log/commands"
)

const usage = `jigna-log - jigna Protocol Log Analyzer

Usage:
  jigna-log <command> [flags] <file.jlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "jigna-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared event selection flags.
func newFlagSet(name, summary, synopsis string) (*flag.FlagSet, *commands.Options) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "jigna-log %s - %s\n\nUsage:\n  %s\n\nFlags:\n", name, summary, synopsis)
		fs.PrintDefaults()
	}

	opts := &commands.Options{}
	fs.StringVar(&opts.SessionID, "session-id", "", "Filter by session ID")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.ModelID, "model", "", "Filter by model ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, session)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (edit, notify, state, drop, error)")
	fs.StringVar(&opts.DropReason, "drop-reason", "", "Filter by drop reason (echo, unknown_model, malformed, coercion, set_failed)")
	return fs, opts
}

// logPath parses args and returns the log file argument.
func logPath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs, opts := newFlagSet("view", "View log file in human-readable format", "jigna-log view [flags] <file.jlog>")
	path := logPath(fs, args)

	if err := commands.RunView(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export log file to JSON lines or CSV", "jigna-log export [flags] <file.jlog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := logPath(fs, args)

	if err := commands.RunExport(path, *format, *output, *opts); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs, opts := newFlagSet("filter", "Filter log file and write to new file", "jigna-log filter [flags] -o <out.jlog> <file.jlog>")
	output := fs.String("o", "", "Output file (required)")
	path := logPath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	count, err := commands.RunFilter(path, *output, *opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the log file", "jigna-log stats [flags] <file.jlog>")
	path := logPath(fs, args)

	if err := commands.RunStats(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}
