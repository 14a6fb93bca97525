package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/server"
)

var (
	serveHost     string
	servePort     string
	serveManaged  bool
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SmartMarks server",
	Long: `Start the SmartMarks web front-end.

The server talks to the grading backend at backend.url. With --managed (or
backend.managed in the config) it runs the backend as a Docker container
instead, started with the server and stopped when the server shuts down
(via Ctrl+C or SIGTERM).

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes the grading backend)
  - /status - Backend URL, health and container state
  - /swagger - API docs; run "go generate ./docs" first to write
               docs/swagger/swagger.json, read relative to the working dir

Examples:
  smartmarks serve                    # Start on default port 3000
  smartmarks serve --port 8080        # Start on custom port
  smartmarks serve --host 0.0.0.0     # Bind to all interfaces
  smartmarks serve --managed          # Also run the grading backend container`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var level slog.Level
		if err := level.UnmarshalText([]byte(serveLogLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		h, err := getHome()
		if err != nil {
			return err
		}

		cfgMgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		if path := cfgMgr.ConfigFile(); path != "" {
			logger.Info("loaded config", "file", path)
			cfgMgr.WatchConfig()
		}
		cfg := cfgMgr.Get()

		managed := cfg.Backend.Managed
		if cmd.Flags().Changed("managed") {
			managed = serveManaged
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cfgMgr,
			Home:          h,
			Managed:       managed,
			DockerConfig:  cfg.ToDockerConfig(h.BackendPath()),
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port from config)")
	serveCmd.Flags().BoolVar(&serveManaged, "managed", false, "Run the grading backend as a Docker container")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
}
