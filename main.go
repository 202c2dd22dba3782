package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/ipfeed/cmd"
	"grimm.is/ipfeed/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.DefaultConfigPath()

	switch os.Args[1] {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		configFile := serveFlags.String("config", defaultConfig, "Configuration file")
		serveFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		serveFlags.Parse(os.Args[2:])

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := cmd.RunServe(ctx, *configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := checkFlags.String("config", defaultConfig, "Configuration file")
		checkFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		listFile := checkFlags.String("list", "", "List file to preview")
		checkFlags.Parse(os.Args[2:])

		if err := cmd.RunCheck(os.Stdout, *configFile, *listFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version", "--version", "-v":
		cmd.RunVersion(os.Stdout)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  serve     Run the feed daemon
            Options: --config (-c) <file>
  check     Validate configuration and optionally preview a list
            Options: --config (-c) <file>, --list <file>
  version   Show version information

Use feedctl to edit the list on a running daemon.
`, brand.Name, brand.Description, brand.BinaryName)
}
