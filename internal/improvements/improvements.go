// Package improvements decodes the text-improvement analysis returned by the
// grading backend: complexity metrics plus model-generated suggestions.
package improvements

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is the body of a get_improvements call.
type Request struct {
	Text string `json:"text"`
}

// Response is the backend's get_improvements payload.
type Response struct {
	Text         string       `json:"text"`
	Improvements Improvements `json:"improvements"`
}

// Improvements is the analysis as the backend sends it. Suggestions are kept
// raw so they can be passed back unchanged for PDF export.
type Improvements struct {
	ComplexityMetrics      Metrics         `json:"complexity_metrics"`
	ImprovementSuggestions json.RawMessage `json:"improvement_suggestions,omitempty"`
}

// Metrics are simple readability statistics for a text.
type Metrics struct {
	WordCount           int         `json:"word_count"`
	SentenceCount       int         `json:"sentence_count"`
	AvgWordsPerSentence float64     `json:"avg_words_per_sentence"`
	AvgWordLength       float64     `json:"avg_word_length"`
	VocabularyDiversity float64     `json:"vocabulary_diversity"` // percent
	CommonWords         []WordCount `json:"common_words"`
}

// WordCount is a word and how often it occurs. On the wire it is a
// two-element array: ["word", 3].
type WordCount struct {
	Word  string
	Count int
}

func (w *WordCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("common word: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("common word: expected [word, count], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &w.Word); err != nil {
		return fmt.Errorf("common word: %w", err)
	}
	var count float64
	if err := json.Unmarshal(pair[1], &count); err != nil {
		return fmt.Errorf("common word count: %w", err)
	}
	w.Count = int(count)
	return nil
}

func (w WordCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Word, w.Count})
}

// Analysis is a decoded improvements response ready for rendering.
type Analysis struct {
	Text    string
	Metrics Metrics
	// Suggestions is nil when the backend sent none or they could not be parsed.
	Suggestions *Suggestions
	// ParseErr is set when suggestions were present but malformed.
	ParseErr error
	Raw      Improvements
}

// Analyze decodes the suggestions of resp. Metrics are kept even when the
// suggestions fail to parse.
func Analyze(resp Response) *Analysis {
	a := &Analysis{
		Text:    resp.Text,
		Metrics: resp.Improvements.ComplexityMetrics,
		Raw:     resp.Improvements,
	}
	a.Suggestions, a.ParseErr = ParseSuggestions(resp.Improvements.ImprovementSuggestions)
	return a
}

// HasSuggestions reports whether there is anything to show besides metrics.
func (a *Analysis) HasSuggestions() bool {
	return a != nil && a.Suggestions != nil
}

// PDFRequest is the body of an improvements_pdf call.
type PDFRequest struct {
	Text         string       `json:"text"`
	Improvements Improvements `json:"improvements"`
}

// PDFRequest rebuilds the export request from the analysis.
func (a *Analysis) PDFRequest() PDFRequest {
	return PDFRequest{Text: a.Text, Improvements: a.Raw}
}

// Blank reports whether text has nothing to analyze.
func Blank(text string) bool {
	return strings.TrimSpace(text) == ""
}
