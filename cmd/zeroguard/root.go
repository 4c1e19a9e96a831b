package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "zeroguard",
	Short: "HTTP/1.1 server with a zero-read storm watchdog",
	Long: `Zeroguard serves /echo and /upload over HTTP/1.1 and attaches a watchdog
to every request body still in flight. A body that keeps returning
zero-length reads past the configured timeout (or count) gets its
connection closed instead of spinning the handler.

Settings come from defaults, an optional YAML or TOML file and
ZEROGUARD_* environment variables, in that order.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (.yaml, .yml or .toml)")
}
