// Package main provides the CLI entry point for botkit, a chat bot runtime
// that routes platform events to declared command, component and event
// handlers.
//
// # Basic Usage
//
// Start the bot:
//
//	botkit serve --config botkit.yaml
//
// List the demo routes:
//
//	botkit routes
//
// Check a config file:
//
//	botkit config validate --config botkit.yaml
//
// # Environment Variables
//
// Config files may reference environment variables, e.g. token: ${BOTKIT_TOKEN}.
//
//   - BOTKIT_CONFIG: Path to configuration file (default: botkit.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "botkit.yaml"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "botkit",
		Short: "botkit - chat bot dispatch runtime",
		Long: `botkit connects to a chat platform and dispatches messages, button
clicks and lifecycle events to declared handlers.

Supported platforms: discord, gateway (websocket), memory`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRoutesCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

// resolveConfigPath prefers an explicit flag, then BOTKIT_CONFIG.
func resolveConfigPath(path string) string {
	if path != "" && path != defaultConfigPath {
		return path
	}
	if env := os.Getenv("BOTKIT_CONFIG"); env != "" {
		return env
	}
	return path
}
