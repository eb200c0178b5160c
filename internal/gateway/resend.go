package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendBaseURL = "https://api.resend.com"

// Resend delivers mail through the Resend HTTP API.
type Resend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewResend validates credentials up front; a missing API key is a
// configuration error and must abort start-up.
func NewResend(apiKey, baseURL string) (*Resend, error) {
	if apiKey == "" {
		return nil, errors.New("resend: api key is required")
	}
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	return &Resend{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	payload := resendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	}
	if msg.Text != nil {
		payload.Text = *msg.Text
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("resend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &DeliveryError{Provider: "resend", Reason: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &DeliveryError{Provider: "resend", Reason: fmt.Sprintf("read response: %v", err)}
	}

	var decoded resendResponse
	_ = json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := decoded.Message
		if reason == "" {
			reason = fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		}
		return "", &DeliveryError{Provider: "resend", Reason: reason}
	}

	return decoded.ID, nil
}
