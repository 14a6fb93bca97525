package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
)

const (
	// CleanupLabel marks grading backend containers started by tests.
	CleanupLabel = "smartmarks-test"

	// DockerTestsEnv opts in to tests that need a Docker daemon and the
	// grading backend image.
	DockerTestsEnv = "SMARTMARKS_DOCKER_TESTS"
)

// DockerTestsEnabled reports whether Docker-backed tests should run.
func DockerTestsEnabled() bool {
	return os.Getenv(DockerTestsEnv) != ""
}

// RunDockerTests is a TestMain body for packages that start grading backend
// containers. When Docker tests are enabled it removes labelled containers
// left by interrupted runs, before and after the package's tests.
func RunDockerTests(m *testing.M) int {
	if !DockerTestsEnabled() {
		return m.Run()
	}

	sweep := func(stage string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := RemoveTestContainers(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "testutil: %s container sweep: %v\n", stage, err)
		}
	}

	sweep("pre-run")
	code := m.Run()
	sweep("post-run")
	return code
}

// RequireDocker returns a Docker client, skipping the test unless Docker
// tests are enabled and the daemon answers. Containers labelled with this
// test's name are removed when the test ends.
func RequireDocker(t testing.TB) *client.Client {
	t.Helper()
	if !DockerTestsEnabled() {
		t.Skipf("set %s=1 to run Docker integration tests", DockerTestsEnv)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		t.Skipf("docker is not running: %v", err)
	}

	t.Cleanup(func() {
		removeContainers(t, cli, fmt.Sprintf("%s=%s", CleanupLabel, t.Name()))
		_ = cli.Close()
	})
	return cli
}

// UniqueContainerName returns a container name unique to this test run:
// smartmarks-test-<prefix>-<test>-<id>.
func UniqueContainerName(t testing.TB, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s-%s-%s-%s", CleanupLabel, prefix, containerSafe(t.Name()), uuid.NewString()[:8])
}

// ContainerLabels returns the labels RequireDocker cleans up by.
func ContainerLabels(t testing.TB) map[string]string {
	return map[string]string{CleanupLabel: t.Name()}
}

// RemoveTestContainers removes every container carrying CleanupLabel.
func RemoveTestContainers(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer cli.Close()

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", CleanupLabel)),
	})
	if err != nil {
		return fmt.Errorf("failed to list test containers: %w", err)
	}

	for _, c := range containers {
		if err := forceRemove(ctx, cli, c.ID); err != nil {
			return fmt.Errorf("failed to remove container %s: %w", containerName(c), err)
		}
	}
	return nil
}

func removeContainers(t testing.TB, cli *client.Client, label string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		t.Logf("failed to list containers for cleanup: %v", err)
		return
	}
	for _, c := range containers {
		if err := forceRemove(ctx, cli, c.ID); err != nil {
			t.Logf("failed to remove container %s: %v", containerName(c), err)
			continue
		}
		t.Logf("removed test container %s", containerName(c))
	}
}

func forceRemove(ctx context.Context, cli *client.Client, id string) error {
	timeout := 10
	_ = cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	return cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

func containerName(c container.Summary) string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// containerSafe keeps the characters Docker allows in names, at most 30.
func containerSafe(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '/' || r == '_' || r == '-':
			b.WriteByte('-')
		}
		if b.Len() == 30 {
			break
		}
	}
	return b.String()
}
