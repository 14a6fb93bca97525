package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/home"
	"github.com/smartmarks/smartmarks/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "smartmarks",
	Short: "Web front-end for grading handwritten assignments",
	Long: `SmartMarks lets teachers upload photos of handwritten work, have them
graded by the SmartMarks grading backend and review the results.

It provides:
  - Image upload with per-image extracted text, marked text and error tables
  - Retrying the grading of a single image
  - PDF reports and emailing a grade
  - Writing improvement suggestions for any text`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.smartmarks/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "smartmarks home directory (default: ~/.smartmarks)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig reads --config, falling back to the home directory's config
// file when it exists.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}
