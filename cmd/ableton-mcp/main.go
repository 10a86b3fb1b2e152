// Ableton-MCP: chain building bridge for Ableton Live
//
// An MCP server that lets AI tools build and tune audio effect chains in a
// running Ableton Live set. It resolves loose track, device and parameter
// references against the Live object graph through a remote-script gateway.
//
// Usage:
//
//	ableton-mcp serve              # Start MCP server (stdio transport)
//	ableton-mcp serve --config F   # Start with a JSON config file
//	ableton-mcp update             # Self-update to the latest release
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	bridgeserver "github.com/mparcell123/Ableton-MCP/internal/server"
	"github.com/mparcell123/Ableton-MCP/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(parseConfigFlag(os.Args[2:])); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("ableton-mcp v%s\n", bridgeserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(configPath string) error {
	s, cleanup, err := bridgeserver.New(configPath)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check. Prints to stderr so it never interferes
	// with the MCP stdio transport on stdout.
	go checkForUpdates()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

// parseConfigFlag extracts --config from the serve arguments. Both
// "--config path" and "--config=path" are accepted.
func parseConfigFlag(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}

// checkForUpdates runs a non-blocking version check and prints a notice to
// stderr when a newer release exists.
func checkForUpdates() {
	res := updater.CheckVersion(bridgeserver.Version)
	if res.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "\nA new version of ableton-mcp is available: v%s (current: v%s)\nRun 'ableton-mcp update' to upgrade.\n\n",
			res.LatestVersion, res.CurrentVersion)
	}
}

func runUpdate() {
	fmt.Println("Checking for updates...")
	res := updater.CheckVersion(bridgeserver.Version)
	if !res.UpdateAvailable {
		fmt.Printf("Already up to date (v%s)\n", bridgeserver.Version)
		return
	}

	fmt.Printf("Updating v%s -> v%s...\n", res.CurrentVersion, res.LatestVersion)
	if err := updater.SelfUpdate(bridgeserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Updated. Restart the MCP server to use the new version.")
}

func printUsage() {
	fmt.Println(`ableton-mcp - Chain building bridge for Ableton Live

Usage:
  ableton-mcp serve [--config FILE]   Start MCP server (stdio transport)
  ableton-mcp update                  Update to the latest version
  ableton-mcp version                 Show version
  ableton-mcp help                    Show this help

Configuration comes from the optional JSON file, overridden by environment
variables (ABLETON_GATEWAY_HOST, ABLETON_GATEWAY_PORT, ABLETON_LOG_LEVEL, ...).

Requires the gateway remote script running inside Ableton Live; by default it
listens on 127.0.0.1:8001.

Add to your MCP client configuration:
  {
    "mcpServers": {
      "ableton": {
        "command": "ableton-mcp",
        "args": ["serve"]
      }
    }
  }`)
}
