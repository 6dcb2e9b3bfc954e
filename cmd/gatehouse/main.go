package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "gatehouse",
		Short: "Container entrypoint: process supervision and request routing",
		Long: `Gatehouse supervises the long-running processes of a containerized web
application and routes inbound traffic across them.

Examples:
  gatehouse run --config=gatehouse.toml     # Supervise the service group
  gatehouse route --config=gatehouse.toml   # Run only the request router
  gatehouse status                          # Query a running entrypoint
  gatehouse stop --name=worker              # Stop one service`,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "gatehouse.toml", "path to TOML config file")
	root.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		createRunCommand(globalFlags),
		createRouteCommand(globalFlags),
		createStatusCommand(),
		createStopCommand(),
	)
	return root
}

func createRunCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [config.toml]",
		Short: "Run the entrypoint: start, supervise and route",
		Long: `Start every configured service, watch their health and shut the whole
group down on SIGTERM/SIGINT or when a critical service fails. The process
exit code reflects how the group ended.

Examples:
  gatehouse run --config=gatehouse.toml
  gatehouse run gatehouse.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			code, err := runEntrypoint(path, globalFlags.LogLevel)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
}

func createRouteCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "route [config.toml]",
		Short: "Run only the request router",
		Long: `Serve the configured route table without supervising any processes.
Typically launched by 'gatehouse run' as one of the managed services.

Examples:
  gatehouse route --config=gatehouse.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runRouter(path, globalFlags.LogLevel)
		},
	}
}

func createStatusCommand() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status via the control API",
		Long: `Query a running entrypoint for service status.

Examples:
  gatehouse status
  gatehouse status --name=worker
  gatehouse status --api-url=http://127.0.0.1:9091/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (optional)")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "control API URL (default http://127.0.0.1:9091/api)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

func createStopCommand() *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop one service via the control API",
		Long: `Stop a single managed service, waiting for it to exit voluntarily
before it is killed.

Examples:
  gatehouse stop --name=worker
  gatehouse stop --name=worker --wait=5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "service name (required)")
	cmd.Flags().DurationVar(&flags.Wait, "wait", 5*time.Second, "time to wait for graceful shutdown")
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "", "control API URL (default http://127.0.0.1:9091/api)")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	return cmd
}
