// Package report verifies PDFs produced by the grading backend before they
// are offered for preview and download.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxSize bounds how much of a generated PDF is read for verification.
const MaxSize = 64 << 20

// ErrTooLarge is returned for PDFs above MaxSize.
var ErrTooLarge = errors.New("pdf exceeds maximum size")

// Info describes a verified PDF.
type Info struct {
	Name  string `json:"name"`
	Pages int    `json:"pages"`
	Size  int64  `json:"size"`
}

// Inspect reads a PDF and returns its page count. Validation is relaxed to
// tolerate the minor defects common in generated reports.
func Inspect(name string, r io.Reader) (*Info, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count for %s: %w", name, err)
	}
	if pages < 1 {
		return nil, fmt.Errorf("%s has no pages", name)
	}
	return &Info{Name: name, Pages: pages, Size: int64(len(data))}, nil
}
