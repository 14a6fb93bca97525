// Package email sends grade notifications through the EmailJS REST API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultEndpoint is the EmailJS send API.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

var (
	// ErrMissingFields is returned when name, recipient or grade is empty.
	ErrMissingFields = errors.New("please fill in all fields")
	// ErrInvalidRecipient is returned when the recipient is not an email address.
	ErrInvalidRecipient = errors.New("please enter a valid recipient email address")
	// ErrNotConfigured is returned when EmailJS credentials are missing.
	ErrNotConfigured = errors.New("email delivery is not configured")
)

var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config holds EmailJS credentials.
type Config struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
	// PrivateKey is the optional access token required when the EmailJS
	// account enforces it for server-side calls.
	PrivateKey string
}

// Configured reports whether the required credentials are present.
func (c Config) Configured() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.PublicKey != ""
}

// Message is a grade notification.
type Message struct {
	Name      string
	Recipient string
	Grade     string
}

// Validate checks the message the same way the form does before sending.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Recipient) == "" || strings.TrimSpace(m.Grade) == "" {
		return ErrMissingFields
	}
	if !addressPattern.MatchString(strings.TrimSpace(m.Recipient)) {
		return ErrInvalidRecipient
	}
	return nil
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	Name           string `json:"name"`
	ToEmail        string `json:"to_email"`
	RecipientEmail string `json:"recipient_email"`
	Grade          string `json:"grade"`
	Timestamp      string `json:"timestamp"`
}

// SendError is a rejected send. EmailJS answers with a plain-text reason.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send email (status %d): %s", e.StatusCode, e.Body)
}

// Sender delivers messages. It can be reconfigured at runtime.
type Sender struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// NewSender creates a sender.
func NewSender(cfg Config) *Sender {
	s := &Sender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig replaces the credentials.
func (s *Sender) SetConfig(cfg Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Configured reports whether Send can be used.
func (s *Sender) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Configured()
}

// Send validates and delivers m.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	if !cfg.Configured() {
		return ErrNotConfigured
	}

	recipient := strings.TrimSpace(m.Recipient)
	body, err := json.Marshal(sendRequest{
		ServiceID:   cfg.ServiceID,
		TemplateID:  cfg.TemplateID,
		UserID:      cfg.PublicKey,
		AccessToken: cfg.PrivateKey,
		TemplateParams: templateParams{
			Name:           strings.TrimSpace(m.Name),
			ToEmail:        recipient,
			RecipientEmail: recipient,
			Grade:          strings.TrimSpace(m.Grade),
			Timestamp:      s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &SendError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return nil
}
