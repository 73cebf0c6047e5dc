// i3pulse generates a status line for i3bar.
//
// It polls a configurable set of widgets (clock, cpu, network, battery,
// volume, stock quotes, tailscale, kubernetes, files, mqtt topics) and
// writes the i3bar JSON protocol to stdout.
//
// Usage:
//
//	i3pulse [flags]
//	i3pulse preview [flags]
//	i3pulse check [flags]
//	i3pulse version
//
// Flags:
//
//	-c, --config string   Path to configuration file (default: $XDG_CONFIG_HOME/i3pulse/config.toml)
//	-v, --verbose         Enable debug logging
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

type options struct {
	configPath string
	verbose    bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "i3pulse",
		Short: "Status line generator for i3bar",
		Long: `i3pulse polls a set of widgets and writes the i3bar JSON protocol
to stdout. Point i3bar's status_command at it.`,
		Example: `  # ~/.config/i3/config
  bar {
      status_command i3pulse
  }

  # Try a configuration in the terminal
  i3pulse preview -c ./config.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, modeBar)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(previewCmd(&opts), checkCmd(&opts), versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "i3pulse: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func previewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Render the bar in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *opts, modePreview)
		},
	}
}

func checkCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and run every collector once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return check(cmd.Context(), *opts, cmd.OutOrStdout())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "i3pulse %s (%s) built %s\n", version, commit, date)
		},
	}
}
