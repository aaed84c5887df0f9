package main

import (
	"fmt"
	"os"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interactions server",
	Long: `Run the guildwarden interactions server.

It runs in the foreground by default, or under the system service manager
once installed.

Examples:
  # Run in foreground
  guildwarden serve

  # Install as system service (requires sudo/admin privileges)
  sudo guildwarden serve install

  # Control the service
  sudo guildwarden serve start
  sudo guildwarden serve stop
  sudo guildwarden serve restart
  sudo guildwarden serve status

  # Uninstall the service
  sudo guildwarden serve uninstall`,
	RunE: runServe,
}

var serveInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the server as a system service",
	Long: `Register guildwarden with the system service manager (systemd,
launchd or the Windows Service Manager) so it starts on boot.
Requires administrator/root privileges.`,
	RunE: serviceAction("installing", "installed", InstallService),
}

var serveUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the system service",
	RunE:  serviceAction("uninstalling", "uninstalled", UninstallService),
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	RunE:  serviceAction("starting", "started", StartService),
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running service",
	RunE:  serviceAction("stopping", "stopped", StopService),
}

var serveRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the service",
	RunE:  serviceAction("restarting", "restarted", RestartService),
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return StatusService(cmd.OutOrStdout())
	},
}

func init() {
	serveCmd.AddCommand(serveInstallCmd)
	serveCmd.AddCommand(serveUninstallCmd)
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveRestartCmd)
	serveCmd.AddCommand(serveStatusCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if !service.Interactive() {
		return RunService()
	}
	return runForeground()
}

func serviceAction(verb, done string, fn func() error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(); err != nil {
			fmt.Fprintf(os.Stderr, "Error %s service: %v\n", verb, err)
			fmt.Fprintln(os.Stderr, "\nNote: managing system services requires administrator privileges.")
			fmt.Fprintln(os.Stderr, "Please run with sudo (Linux/macOS) or as Administrator (Windows).")
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Service %s.\n", done)
		return nil
	}
}

// runForeground runs until SIGINT or SIGTERM. fx.App.Run handles the signals.
func runForeground() error {
	app := newApp("foreground")
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
