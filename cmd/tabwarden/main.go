package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tabwarden",
	Short: "Tabwarden - keeps browser tabs fresh on a schedule",
	Long: `Tabwarden reloads browser tabs on a per-tab timer.

The daemon (tabwarden serve) drives a browser over the DevTools protocol,
survives restarts without losing its timers and keeps the browser from
suspending tabs that have a timer running. The other commands talk to a
running daemon.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Tabwarden version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("addr", "127.0.0.1:7420", "Daemon API address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(stopAllCmd)
	rootCmd.AddCommand(intervalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tabsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Tabwarden version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
