// internal/notify/http.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTransport posts messages to an email API that accepts
// {recipients, subject, htmlContent, textContent} and answers
// {success, messageId, error, details}.
type HTTPTransport struct {
	url    string
	client *http.Client
}

func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{url: url, client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Name() string { return "http" }

type apiResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
	Details   string `json:"details"`
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) Result {
	if len(msg.Recipients) == 0 {
		return failed(ErrNoRecipients)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return failed(fmt.Errorf("marshal message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return failed(err)
	}
	defer resp.Body.Close()

	var out apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := out.Error
		if out.Details != "" {
			reason = fmt.Sprintf("%s: %s", reason, out.Details)
		}
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return Result{Error: fmt.Sprintf("status %d: %s", resp.StatusCode, reason)}
	}
	if decodeErr != nil {
		return failed(fmt.Errorf("decode response: %w", decodeErr))
	}
	if !out.Success {
		return Result{Error: out.Error}
	}
	return Result{Success: true, MessageID: out.MessageID}
}
