package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Record *RecordCommand
	Get    *GetCommand
	Status *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "tally"
	parser.LongDescription = "Per-item event counters with daily totals, history and visit dedup."

	cmds := &commands{
		Record: &RecordCommand{globals: &globals, version: version},
		Get:    &GetCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("record", "Count one event", "Count one event for ITEM/NAME and print today's and the total count.", cmds.Record)
	parser.AddCommand("get", "Show counts", "Show the current counts for ITEM/NAME, or archived counts for a day or range of days.", cmds.Get)
	parser.AddCommand("status", "Show group configuration and statistics", "Show the stats group configuration and table statistics.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the tally CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand; --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("tally %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
