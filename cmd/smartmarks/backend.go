package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/grader"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Manage the grading backend container",
	Long: `Manage a local grading backend running in Docker.

Uploaded images and generated reports are persisted to ~/.smartmarks/backend/.
Image, port and container name come from the backend section of the config.

Examples:
  smartmarks backend start   # Start the grading backend container
  smartmarks backend stop    # Stop the container (data preserved)
  smartmarks backend status  # Check container status
  smartmarks backend logs    # View container logs`,
}

var backendStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the grading backend container",
	Long: `Start the grading backend container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting grading backend...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start grading backend: %w", err)
		}

		fmt.Printf("Grading backend is running at %s\n", mgr.URL())
		return nil
	},
}

var backendStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the grading backend container",
	Long: `Stop the grading backend container.

This stops the container but preserves data. Use 'smartmarks backend start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping grading backend...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop grading backend: %w", err)
		}

		fmt.Println("Grading backend stopped")
		return nil
	},
}

var backendStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show grading backend container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case backend.StatusRunning:
			fmt.Printf("Status: %s\n", color.GreenString(string(status)))
			fmt.Printf("URL: %s\n", mgr.URL())

			client := grader.NewClient(grader.Config{BaseURL: mgr.URL(), Timeout: 5 * time.Second})
			if err := client.Health(ctx); err != nil {
				fmt.Printf("Health: %s (%v)\n", color.RedString("unhealthy"), err)
			} else {
				fmt.Printf("Health: %s\n", color.GreenString("healthy"))
			}
		case backend.StatusStopped:
			fmt.Printf("Status: %s (use 'smartmarks backend start' to start)\n", color.YellowString(string(status)))
		case backend.StatusNotFound:
			fmt.Printf("Status: %s (use 'smartmarks backend start' to create)\n", color.YellowString(string(status)))
		default:
			fmt.Printf("Status: %s\n", color.RedString(string(status)))
		}

		return nil
	},
}

var logsTail string

var backendLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show grading backend container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var backendRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the grading backend container",
	Long: `Remove the grading backend container.

This stops and removes the container. Data in ~/.smartmarks/backend/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing grading backend container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Grading backend container removed (data preserved)")
		return nil
	},
}

var backendWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the grading backend to be ready",
	Long: `Wait for the grading backend to accept connections.

This is useful in scripts to ensure the backend is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for grading backend (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("grading backend not ready: %w", err)
		}

		fmt.Println("Grading backend is ready")
		return nil
	},
}

func init() {
	// Add subcommands
	backendCmd.AddCommand(backendStartCmd)
	backendCmd.AddCommand(backendStopCmd)
	backendCmd.AddCommand(backendStatusCmd)
	backendCmd.AddCommand(backendLogsCmd)
	backendCmd.AddCommand(backendRemoveCmd)
	backendCmd.AddCommand(backendWaitCmd)

	// Logs flags
	backendLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")

	// Wait flags
	backendWaitCmd.Flags().Duration("timeout", 60*time.Second, "Timeout waiting for the grading backend")

	// Add to root
	rootCmd.AddCommand(backendCmd)
}

// getDockerManager creates a DockerManager from the loaded config.
func getDockerManager() (*backend.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	mgr, err := loadConfig(h)
	if err != nil {
		return nil, err
	}
	return backend.NewDockerManager(mgr.Get().ToDockerConfig(h.BackendPath()))
}
