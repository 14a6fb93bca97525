package grader

import (
	"github.com/smartmarks/smartmarks/internal/results"
)

// errorRow is an error-table row as the backend serializes it.
type errorRow struct {
	IncorrectText string `json:"Incorrect Text"`
	CorrectText   string `json:"Correct Text"`
	ErrorCategory string `json:"Error Category"`
}

// wireResult is one graded image as the backend serializes it.
type wireResult struct {
	Image         string     `json:"image"`
	ExtractedText string     `json:"extractedText"`
	ErrorTable    []errorRow `json:"errorTable"`
	MarkedText    string     `json:"markedText,omitempty"`
}

type resultsResponse struct {
	Results []wireResult `json:"results"`
}

type retryRequest struct {
	Image string `json:"image"`
}

type retryResponse struct {
	ExtractedText string     `json:"extractedText"`
	ErrorTable    []errorRow `json:"errorTable"`
	MarkedText    string     `json:"markedText"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// UploadResponse is returned by the backend after grading a submission.
type UploadResponse struct {
	StudentName  string           `json:"studentName"`
	StudentClass string           `json:"studentClass"`
	Subject      string           `json:"subject"`
	Results      []results.Result `json:"results"`
}

type uploadResponse struct {
	StudentName  string       `json:"studentName"`
	StudentClass string       `json:"studentClass"`
	Subject      string       `json:"subject"`
	Results      []wireResult `json:"results"`
}

// PDFRequest asks the backend to render a graded report.
type PDFRequest struct {
	StudentName  string
	StudentClass string
	Subject      string
	Results      []results.Result
}

type pdfRequest struct {
	StudentName  string       `json:"studentName"`
	StudentClass string       `json:"studentClass"`
	Subject      string       `json:"subject"`
	Results      []wireResult `json:"results"`
}

type pdfResponse struct {
	Message string `json:"message"`
	PDFPath string `json:"pdfPath"`
}

func toErrorEntries(rows []errorRow) []results.ErrorEntry {
	if len(rows) == 0 {
		return nil
	}
	out := make([]results.ErrorEntry, len(rows))
	for i, row := range rows {
		out[i] = results.ErrorEntry{
			IncorrectText: row.IncorrectText,
			CorrectText:   row.CorrectText,
			ErrorCategory: row.ErrorCategory,
		}
	}
	return out
}

func toErrorRows(entries []results.ErrorEntry) []errorRow {
	out := make([]errorRow, len(entries))
	for i, e := range entries {
		out[i] = errorRow{
			IncorrectText: e.IncorrectText,
			CorrectText:   e.CorrectText,
			ErrorCategory: e.ErrorCategory,
		}
	}
	return out
}

func toResults(ws []wireResult) []results.Result {
	out := make([]results.Result, len(ws))
	for i, w := range ws {
		out[i] = results.Result{
			ExtractedText: w.ExtractedText,
			ErrorTable:    toErrorEntries(w.ErrorTable),
			MarkedText:    w.MarkedText,
			Image:         w.Image,
		}
	}
	return out
}

func toWire(rs []results.Result) []wireResult {
	out := make([]wireResult, len(rs))
	for i, r := range rs {
		out[i] = wireResult{
			Image:         r.Image,
			ExtractedText: r.ExtractedText,
			ErrorTable:    toErrorRows(r.ErrorTable),
			MarkedText:    r.MarkedText,
		}
	}
	return out
}
