// Package notify sends email notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "assistant/internal/log"
)

// DefaultBrevoURL is the transactional email endpoint.
const DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// Sender delivers one HTML email. ok reports whether the provider accepted
// it; err is set for transport failures.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (ok bool, err error)
}

// BrevoConfig configures the Brevo HTTP API client.
type BrevoConfig struct {
	URL         string
	APIKey      string
	SenderName  string
	SenderEmail string
}

// Brevo sends mail through the Brevo (Sendinblue) HTTP API.
type Brevo struct {
	client *http.Client
	cfg    BrevoConfig
}

// NewBrevo returns a client with a bounded request timeout.
func NewBrevo(cfg BrevoConfig) *Brevo {
	if cfg.URL == "" {
		cfg.URL = DefaultBrevoURL
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "Executive Assistant"
	}
	return &Brevo{
		client: &http.Client{Timeout: 15 * time.Second},
		cfg:    cfg,
	}
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoMessage struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// SendEmail posts one message. Brevo answers 201 Created on acceptance;
// any other status is reported as not sent.
func (b *Brevo) SendEmail(ctx context.Context, to, subject, htmlBody string) (bool, error) {
	if to == "" {
		return false, errors.New("recipient is empty")
	}
	if b.cfg.APIKey == "" {
		return false, errors.New("brevo api key is not configured")
	}

	payload, err := json.Marshal(brevoMessage{
		Sender:      brevoAddress{Name: b.cfg.SenderName, Email: b.cfg.SenderEmail},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		appLog.Error("email not accepted", errors.New(resp.Status), "to", to, "status", resp.StatusCode, "body", string(body))
		return false, nil
	}

	appLog.Info("email sent", "to", to, "subject", subject)
	return true, nil
}
