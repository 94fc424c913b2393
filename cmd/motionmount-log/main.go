// Command motionmount-log views and summarizes protocol logs written with
// motionmount-example -protocol-log.
//
// Usage:
//
//	motionmount-log <command> [flags] <file.mlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	motionmount-log view session.mlog
//
//	# Only what the mount sent about the extension
//	motionmount-log view -direction in -key mount/extension/current session.mlog
//
//	# Export to CSV
//	motionmount-log export -format csv -o session.csv session.mlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/motionmount/motionmount-go/cmd/motionmount-log/commands"
	"github.com/motionmount/motionmount-go/pkg/log"
)

const usage = `motionmount-log - MotionMount protocol log viewer

Usage:
  motionmount-log <command> [flags] <file.mlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV
  stats    Show statistics about the log file

Use "motionmount-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args, os.Stdout)
	case "export":
		err = runExport(args)
	case "stats":
		err = runStats(args, os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// filterFlags registers the event filter flags shared by view and export.
func filterFlags(fs *flag.FlagSet) func() (log.Filter, error) {
	layer := fs.String("layer", "", "Filter by layer (transport, wire, session)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, error)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	key := fs.String("key", "", "Filter by protocol key")

	return func() (log.Filter, error) {
		filter := log.Filter{ConnectionID: *connID, Key: *key}
		if *layer != "" {
			l, err := commands.ParseLayerFlag(*layer)
			if err != nil {
				return log.Filter{}, err
			}
			filter.Layer = &l
		}
		if *direction != "" {
			d, err := commands.ParseDirectionFlag(*direction)
			if err != nil {
				return log.Filter{}, err
			}
			filter.Direction = &d
		}
		if *category != "" {
			c, err := commands.ParseCategoryFlag(*category)
			if err != nil {
				return log.Filter{}, err
			}
			filter.Category = &c
		}
		return filter, nil
	}
}

func parsePath(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("log file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	filter := filterFlags(fs)

	path, err := parsePath(fs, args)
	if err != nil {
		return err
	}
	f, err := filter()
	if err != nil {
		return err
	}
	return commands.RunView(path, f, out)
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	filter := filterFlags(fs)

	path, err := parsePath(fs, args)
	if err != nil {
		return err
	}
	f, err := filter()
	if err != nil {
		return err
	}
	return commands.RunExport(path, f, *format, *output)
}

func runStats(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)

	path, err := parsePath(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, out)
}
