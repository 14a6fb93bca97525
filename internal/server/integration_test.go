package server

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/home"
	"github.com/smartmarks/smartmarks/internal/testutil"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.RunDockerTests(m))
}

// TestServer_ManagedBackend runs the server with the grading backend as a
// Docker container and checks the container follows the server's lifecycle.
// It needs a Docker daemon and the backend image.
func TestServer_ManagedBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	_ = testutil.RequireDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backendPort, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("failed to find backend port: %v", err)
	}
	cfg := testutil.NewServerConfig(t, "")

	mgr, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	homeDir, err := home.New(cfg.HomeDir)
	if err != nil {
		t.Fatalf("failed to create home: %v", err)
	}
	if err := homeDir.EnsureExists(); err != nil {
		t.Fatalf("failed to create home dirs: %v", err)
	}

	containerName := testutil.UniqueContainerName(t, "managed")
	dockerCfg := mgr.Get().ToDockerConfig(homeDir.BackendPath())
	dockerCfg.ContainerName = containerName
	dockerCfg.HostPort = backendPort
	dockerCfg.Labels = testutil.ContainerLabels(t)
	dockerCfg.ReadyTimeout = 2 * time.Minute
	if image := os.Getenv("SMARTMARKS_TEST_IMAGE"); image != "" {
		dockerCfg.Image = image
	}

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		ConfigManager: mgr,
		Home:          homeDir,
		Managed:       true,
		DockerConfig:  dockerCfg,
		Logger:        cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	if err := testutil.WaitForServer(cfg.URL(), 3*time.Minute); err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	t.Run("grader_points_at_container", func(t *testing.T) {
		want := "http://127.0.0.1:" + backendPort
		if got := srv.Grader().BaseURL(); got != want {
			t.Errorf("grader BaseURL = %q, want %q", got, want)
		}
	})

	t.Run("status_reports_container", func(t *testing.T) {
		status, err := testutil.GetStatus(cfg.URL())
		if err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		if status.Backend.Container != string(backend.StatusRunning) {
			t.Errorf("status.Backend.Container = %q, want %q", status.Backend.Container, backend.StatusRunning)
		}
	})

	// Cancel context
	serverCancel()

	select {
	case <-serverErr:
	case <-time.After(60 * time.Second):
		t.Fatal("server did not respond to context cancellation")
	}

	// Verify the container is stopped
	check, err := backend.NewDockerManager(backend.DockerConfig{ContainerName: containerName})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer check.Close()

	status, err := check.Status(ctx)
	if err != nil {
		t.Fatalf("failed to get status: %v", err)
	}
	if status == backend.StatusRunning {
		t.Error("grading backend still running after shutdown")
		_ = check.Stop(ctx)
	}
}
