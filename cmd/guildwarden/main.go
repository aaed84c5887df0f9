// Package main is the entry point for the guildwarden CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"guildwarden/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "guildwarden",
	Short: "guildwarden - a Discord moderation bot served over HTTP interactions",
	Long: `guildwarden answers Discord slash commands delivered to a signed
webhook endpoint. It verifies each request, dispatches the command and
calls the Discord REST API for moderation actions.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
