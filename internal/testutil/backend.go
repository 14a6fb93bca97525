package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Credentials accepted by FakeBackend.
const (
	FakeEmail    = "teacher@example.com"
	FakePassword = "testpassword"
	FakeToken    = "fake-token"
)

// FakeErrorRow is an error-table row in the backend's wire format.
type FakeErrorRow struct {
	IncorrectText string `json:"Incorrect Text"`
	CorrectText   string `json:"Correct Text"`
	ErrorCategory string `json:"Error Category"`
}

// FakeResult is a graded image in the backend's wire format.
type FakeResult struct {
	Image         string         `json:"image,omitempty"`
	ExtractedText string         `json:"extractedText"`
	ErrorTable    []FakeErrorRow `json:"errorTable"`
	MarkedText    string         `json:"markedText"`
}

// FakeUpload records what the last /upload call received.
type FakeUpload struct {
	StudentName  string
	StudentClass string
	Subject      string
	Filenames    []string
	ContentTypes []string
}

// FakeBackend is an in-process stand-in for the grading backend. It mirrors
// the backend's routes, bearer-token checks and error payloads.
type FakeBackend struct {
	Server *httptest.Server

	mu          sync.Mutex
	stored      []FakeResult
	retries     map[string]FakeResult
	files       map[string][]byte
	pdfs        map[string][]byte
	calls       map[string]int
	lastUpload  *FakeUpload
	lastPDF     map[string]any
	failures    map[string]int
	retryGate   chan struct{}
	retryStart  chan string
	suggestions json.RawMessage
}

// NewFakeBackend starts a FakeBackend and closes it when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		retries:  make(map[string]FakeResult),
		files:    make(map[string][]byte),
		pdfs:     make(map[string][]byte),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		suggestions: json.RawMessage(`"{\"style_improvements\": [\"Vary sentence length\"], ` +
			`\"vocabulary_enhancements\": [{\"original\": \"good\", \"suggestions\": [\"excellent\"]}], ` +
			`\"structure_suggestions\": [\"Add a conclusion\"], \"strengths\": [\"Clear topic\"]}"`),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", fb.handleLogin)
	mux.HandleFunc("POST /upload", fb.auth(fb.handleUpload))
	mux.HandleFunc("GET /get_results", fb.auth(fb.handleResults))
	mux.HandleFunc("POST /retry_image", fb.auth(fb.handleRetry))
	mux.HandleFunc("POST /generate_pdf", fb.auth(fb.handleGeneratePDF))
	mux.HandleFunc("POST /get_improvements", fb.auth(fb.handleImprovements))
	mux.HandleFunc("POST /improvements_pdf", fb.auth(fb.handleImprovementsPDF))
	mux.HandleFunc("GET /download_pdf/{name}", fb.handleDownloadPDF)
	mux.HandleFunc("GET /uploads/{name}", fb.handleFile)

	fb.Server = httptest.NewServer(fb.count(mux))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the backend's base URL.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// SetResults replaces the stored results. Images referenced by them become
// downloadable.
func (fb *FakeBackend) SetResults(rs ...FakeResult) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.stored = append([]FakeResult(nil), rs...)
	for _, r := range rs {
		if r.Image != "" {
			if _, ok := fb.files[r.Image]; !ok {
				fb.files[r.Image] = []byte("image:" + r.Image)
			}
		}
	}
}

// SetRetry sets what /retry_image returns for image.
func (fb *FakeBackend) SetRetry(image string, r FakeResult) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.retries[image] = r
}

// SetSuggestions overrides the improvement_suggestions value.
func (fb *FakeBackend) SetSuggestions(raw json.RawMessage) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.suggestions = raw
}

// FailNext makes the next n calls to path answer 500.
func (fb *FakeBackend) FailNext(path string, n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures[path] = n
}

// GateRetries blocks every /retry_image call until the returned release
// function is called. Each blocked call's image is sent on started.
func (fb *FakeBackend) GateRetries() (started <-chan string, release func()) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	gate := make(chan struct{})
	start := make(chan string, 16)
	fb.retryGate = gate
	fb.retryStart = start
	var once sync.Once
	return start, func() { once.Do(func() { close(gate) }) }
}

// Calls returns how often path was requested.
func (fb *FakeBackend) Calls(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[path]
}

// LastUpload returns the last recorded upload, or nil.
func (fb *FakeBackend) LastUpload() *FakeUpload {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastUpload
}

// LastPDFRequest returns the decoded body of the last /generate_pdf call.
func (fb *FakeBackend) LastPDFRequest() map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastPDF
}

func (fb *FakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if i := strings.Index(key[1:], "/"); i >= 0 {
			key = key[:i+1]
		}
		fb.mu.Lock()
		fb.calls[key]++
		fail := fb.failures[key] > 0
		if fail {
			fb.failures[key]--
		}
		fb.mu.Unlock()

		if fail {
			writeFakeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		switch {
		case header == "" || token == "":
			writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is missing!"})
		case token != FakeToken:
			writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is invalid!"})
		default:
			next(w, r)
		}
	}
}

func (fb *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Could not verify"})
		return
	}
	if req.Email != FakeEmail || req.Password != FakePassword {
		writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Could not verify! Wrong email or password."})
		return
	}
	writeFakeJSON(w, http.StatusOK, map[string]string{"token": FakeToken})
}

func (fb *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No images uploaded"})
		return
	}

	up := &FakeUpload{
		StudentName:  r.FormValue("studentName"),
		StudentClass: r.FormValue("studentClass"),
		Subject:      r.FormValue("subject"),
	}
	var rs []FakeResult
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeFakeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()

		name := fmt.Sprintf("upload-%d-%s", i+1, fh.Filename)
		up.Filenames = append(up.Filenames, fh.Filename)
		up.ContentTypes = append(up.ContentTypes, fh.Header.Get("Content-Type"))

		fb.mu.Lock()
		fb.files[name] = data
		fb.mu.Unlock()

		rs = append(rs, FakeResult{
			Image:         name,
			ExtractedText: fmt.Sprintf("Teh text of page %d.", i+1),
			ErrorTable:    []FakeErrorRow{{IncorrectText: "Teh", CorrectText: "The", ErrorCategory: "Spelling"}},
			MarkedText:    fmt.Sprintf(`<span style="color:red">Teh</span> text of page %d.`, i+1),
		})
	}

	fb.mu.Lock()
	fb.stored = rs
	fb.lastUpload = up
	fb.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]any{
		"studentName":  up.StudentName,
		"studentClass": up.StudentClass,
		"subject":      up.Subject,
		"results":      rs,
	})
}

func (fb *FakeBackend) handleResults(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	rs := append([]FakeResult(nil), fb.stored...)
	fb.mu.Unlock()

	if len(rs) == 0 {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"error": "No results found"})
		return
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"results": rs})
}

func (fb *FakeBackend) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No image provided"})
		return
	}

	fb.mu.Lock()
	_, exists := fb.files[req.Image]
	patch, scripted := fb.retries[req.Image]
	gate, started := fb.retryGate, fb.retryStart
	fb.mu.Unlock()

	if !exists {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found on server"})
		return
	}
	if gate != nil {
		started <- req.Image
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if !scripted {
		patch = FakeResult{ExtractedText: "Retried " + req.Image, MarkedText: "Retried " + req.Image}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		"extractedText": patch.ExtractedText,
		"errorTable":    nonNilRows(patch.ErrorTable),
		"markedText":    patch.MarkedText,
	})
}

func (fb *FakeBackend) handleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No data received"})
		return
	}
	rs, _ := req["results"].([]any)
	if len(rs) == 0 {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No extracted text provided"})
		return
	}

	fb.mu.Lock()
	name := fmt.Sprintf("report_%d.pdf", len(fb.pdfs)+1)
	fb.pdfs[name] = MinimalPDF(len(rs))
	fb.lastPDF = req
	fb.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]string{
		"message": "PDF generated successfully",
		"pdfPath": "generated_pdfs/" + name,
	})
}

func (fb *FakeBackend) handleImprovements(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No text provided"})
		return
	}
	words := strings.Fields(req.Text)

	fb.mu.Lock()
	suggestions := fb.suggestions
	fb.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]any{
		"text": req.Text,
		"improvements": map[string]any{
			"complexity_metrics": map[string]any{
				"word_count":             len(words),
				"sentence_count":         1,
				"avg_words_per_sentence": float64(len(words)),
				"avg_word_length":        4.2,
				"vocabulary_diversity":   100.0,
				"common_words":           [][]any{{"text", 1}},
			},
			"improvement_suggestions": suggestions,
		},
	})
}

func (fb *FakeBackend) handleImprovementsPDF(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "No data provided"})
		return
	}
	fb.mu.Lock()
	name := fmt.Sprintf("improvement_%d.pdf", len(fb.pdfs)+1)
	fb.pdfs[name] = MinimalPDF(1)
	fb.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string]string{"pdfPath": name})
}

func (fb *FakeBackend) handleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	data, ok := fb.pdfs[r.PathValue("name")]
	fb.mu.Unlock()
	if !ok {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(data)
}

func (fb *FakeBackend) handleFile(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	data, ok := fb.files[r.PathValue("name")]
	fb.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

func nonNilRows(rows []FakeErrorRow) []FakeErrorRow {
	if rows == nil {
		return []FakeErrorRow{}
	}
	return rows
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MinimalPDF builds a valid, empty PDF document with the given page count.
func MinimalPDF(pages int) []byte {
	if pages < 1 {
		pages = 1
	}
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
