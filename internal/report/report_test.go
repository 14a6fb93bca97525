package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smartmarks/smartmarks/internal/testutil"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name  string
		pages int
	}{
		{"single page", 1},
		{"one page per result", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf := testutil.MinimalPDF(tt.pages)
			info, err := Inspect("report.pdf", bytes.NewReader(pdf))
			if err != nil {
				t.Fatalf("Inspect failed: %v", err)
			}
			if info.Pages != tt.pages {
				t.Errorf("expected %d pages, got %d", tt.pages, info.Pages)
			}
			if info.Size != int64(len(pdf)) {
				t.Errorf("expected size %d, got %d", len(pdf), info.Size)
			}
			if info.Name != "report.pdf" {
				t.Errorf("expected name report.pdf, got %s", info.Name)
			}
		})
	}
}

func TestInspect_NotAPDF(t *testing.T) {
	_, err := Inspect("broken.pdf", strings.NewReader("<html>File not found</html>"))
	if err == nil {
		t.Fatal("expected error for non-PDF input")
	}
	if !strings.Contains(err.Error(), "broken.pdf") {
		t.Errorf("expected error to name the file, got %v", err)
	}
}
