package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/routervm/uplinkctl/src/internal/commands"
	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	ctx := &commands.AppContext{}

	flag.StringVar(&ctx.ConfigPath, "config", config.DefaultConfigPath, "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Segment uplink policy router\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		commands.Usage(os.Stderr, os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	// Invalid flags exit with 1 like every other validation failure.
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.ConfigureForJournal()
	if ctx.Verbose {
		log.SetVerbose(true)
	}

	cmds := []commands.Runner{
		commands.CreateAssignCommand(),
		commands.CreateStatusCommand(),
		commands.CreateListCommand(),
		commands.CreateConnectCommand(),
		commands.CreateDisconnectCommand(),
		commands.CreateHelpCommand(),
		commands.CreateInitCommand(),
		commands.CreateFirewallCommand(),
		commands.CreateSelfCheckCommand(),
		commands.CreateUndoCommand(),
		commands.CreateServeCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				if errors.Is(err, flag.ErrHelp) {
					os.Exit(0)
				}
				log.Fatalf("%v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("%v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
