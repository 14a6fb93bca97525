package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the smartmarks home directory.
	DefaultDirName = ".smartmarks"

	// BackendDirName is the subdirectory bind-mounted into the managed grading backend.
	BackendDirName = "backend"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the smartmarks home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.smartmarks).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// BackendPath returns the data directory shared with the managed backend container.
func (d *Dir) BackendPath() string {
	return filepath.Join(d.path, BackendDirName)
}

// UploadsDir is where the backend stores uploaded handwriting images.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.BackendPath(), "uploads")
}

// GeneratedPDFsDir is where the backend writes exported reports.
func (d *Dir) GeneratedPDFsDir() string {
	return filepath.Join(d.BackendPath(), "generated_pdfs")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsDir(), d.GeneratedPDFsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
