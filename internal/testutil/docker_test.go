package testutil

import (
	"strings"
	"testing"
)

func TestUniqueContainerName(t *testing.T) {
	a := UniqueContainerName(t, "grader")
	b := UniqueContainerName(t, "grader")
	if a == b {
		t.Errorf("UniqueContainerName returned %q twice", a)
	}
	if !strings.HasPrefix(a, CleanupLabel+"-grader-TestUniqueContainerName-") {
		t.Errorf("UniqueContainerName() = %q, want test name in it", a)
	}
}

func TestContainerSafe(t *testing.T) {
	tests := map[string]string{
		"TestServer/managed_backend": "TestServer-managed-backend",
		"Test (with) spaces!":        "Testwithspaces",
		strings.Repeat("a", 40):      strings.Repeat("a", 30),
	}
	for in, want := range tests {
		if got := containerSafe(in); got != want {
			t.Errorf("containerSafe(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainerLabels(t *testing.T) {
	labels := ContainerLabels(t)
	if labels[CleanupLabel] != t.Name() {
		t.Errorf("ContainerLabels()[%q] = %q, want %q", CleanupLabel, labels[CleanupLabel], t.Name())
	}
}
