// Package results holds graded handwriting results and the controller that
// loads them and retries individual items against the grading backend.
package results

import "strings"

// ErrorEntry is one detected mistake in an extracted text.
type ErrorEntry struct {
	IncorrectText string `json:"incorrectText"`
	CorrectText   string `json:"correctText"`
	ErrorCategory string `json:"errorCategory"`
}

// IsSpelling reports whether the entry is a spelling mistake (as opposed to grammar).
func (e ErrorEntry) IsSpelling() bool {
	return strings.Contains(strings.ToLower(e.ErrorCategory), "spell")
}

// Result is one graded image. Its identity is its position in a Set.
type Result struct {
	ExtractedText string       `json:"extractedText"`
	ErrorTable    []ErrorEntry `json:"errorTable"`
	MarkedText    string       `json:"markedText,omitempty"`
	Image         string       `json:"image"`
}

// HasImage reports whether the result references an uploaded image.
// Results without one render a fallback notice instead of the image.
func (r *Result) HasImage() bool {
	return strings.TrimSpace(r.Image) != ""
}

// Patch carries the fields a retry is allowed to replace.
type Patch struct {
	ExtractedText string
	ErrorTable    []ErrorEntry
	MarkedText    string
}

// apply returns a new Result with the patch applied. The receiver is not modified.
func (r *Result) apply(p Patch) *Result {
	next := *r
	next.ExtractedText = p.ExtractedText
	next.ErrorTable = append([]ErrorEntry(nil), p.ErrorTable...)
	next.MarkedText = p.MarkedText
	return &next
}

// Set is an immutable, ordered sequence of results.
// Updates return a new Set; untouched entries keep their pointers.
type Set []*Result

// NewSet copies rs into a fresh Set.
func NewSet(rs []Result) Set {
	s := make(Set, len(rs))
	for i := range rs {
		r := rs[i]
		s[i] = &r
	}
	return s
}

// Len returns the number of results.
func (s Set) Len() int { return len(s) }

// At returns the result at index i, or nil if out of range.
func (s Set) At(i int) *Result {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// With returns a new Set where index i has been patched.
// Every other entry is shared with s.
func (s Set) With(i int, p Patch) (Set, error) {
	if i < 0 || i >= len(s) {
		return nil, ErrIndexOutOfRange
	}
	next := make(Set, len(s))
	copy(next, s)
	next[i] = s[i].apply(p)
	return next, nil
}

// Values returns a copy of the results as plain values, e.g. for a PDF request.
func (s Set) Values() []Result {
	out := make([]Result, len(s))
	for i, r := range s {
		out[i] = *r
	}
	return out
}
