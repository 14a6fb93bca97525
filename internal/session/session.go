// Package session keeps per-browser state on the server: the backend token,
// preferences, and the result set being reviewed.
package session

import (
	"sync"
	"time"

	"github.com/smartmarks/smartmarks/internal/improvements"
	"github.com/smartmarks/smartmarks/internal/report"
	"github.com/smartmarks/smartmarks/internal/results"
)

// Themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Flash kinds.
const (
	FlashError   = "error"
	FlashSuccess = "success"
)

// Flash is a message shown once on the next page render.
type Flash struct {
	Kind    string
	Message string
}

// Student identifies whose work is being graded.
type Student struct {
	Name    string `json:"studentName"`
	Class   string `json:"studentClass"`
	Subject string `json:"subject"`
}

// Session is one visitor's state. All accessors are safe for concurrent use.
type Session struct {
	ID string

	// Results is created with the session and lives as long as it does.
	Results *results.Controller

	// bearer marks API client sessions keyed by token; set before the
	// session is stored.
	bearer bool

	mu       sync.Mutex
	token    string
	email    string
	language string
	theme    string
	student  Student
	pdf      *report.Info
	analysis *improvements.Analysis
	flashes  []Flash
	lastSeen time.Time
}

// Token returns the backend bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Email returns the logged-in user's email.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// LoggedIn reports whether the session holds a token.
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Login stores the credentials returned by the backend.
func (s *Session) Login(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.token = token
}

// Logout drops the token and everything fetched with it. Preferences stay.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.email = ""
	s.student = Student{}
	s.pdf = nil
	s.analysis = nil
	s.mu.Unlock()
	s.Results.Reset()
}

// Language returns the UI language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage sets the UI language.
func (s *Session) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// Theme returns the UI theme.
func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ToggleTheme flips between dark and light and returns the new theme.
func (s *Session) ToggleTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	return s.theme
}

// Student returns the details of the last submission.
func (s *Session) Student() Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.student
}

// SetStudent records the details of a submission.
func (s *Session) SetStudent(st Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.student = st
}

// PDF returns the last verified report, or nil.
func (s *Session) PDF() *report.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pdf
}

// SetPDF records the last verified report.
func (s *Session) SetPDF(info *report.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pdf = info
}

// Analysis returns the last text-improvement analysis, or nil.
func (s *Session) Analysis() *improvements.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// SetAnalysis records a text-improvement analysis.
func (s *Session) SetAnalysis(a *improvements.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = a
}

// AddFlash queues a message for the next render.
func (s *Session) AddFlash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
}

// Flashes returns and clears queued messages.
func (s *Session) Flashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) lastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > ttl
}
