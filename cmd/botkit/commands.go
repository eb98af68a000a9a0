package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the bot.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		platform   string
		debug      bool
		noWatch    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the platform and dispatch events",
		Long: `Connect to the configured platform and dispatch events to the demo handlers.

The server will:
1. Load configuration from the specified file (or botkit.yaml)
2. Log in, retrying according to the session settings
3. Serve Prometheus metrics when enabled
4. Reload the restricts section when the config file changes

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Run against the in-memory platform
  botkit serve --platform memory

  # Run with a config file
  botkit serve --config /etc/botkit/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{
				configPath: resolveConfigPath(configPath),
				platform:   platform,
				debug:      debug,
				watch:      !noWatch,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML or JSON5 configuration file")
	cmd.Flags().StringVar(&platform, "platform", "", "Override bot.platform (discord, gateway, memory)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the config file on change")
	return cmd
}

// buildRoutesCmd creates the "routes" command that prints the handler table.
func buildRoutesCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the commands, components and events the bot handles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(cmd, prefix)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "*", "Command prefix")
	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration files",
	}
	cmd.AddCommand(buildConfigValidateCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a config file and report every problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML or JSON5 configuration file")
	return cmd
}
