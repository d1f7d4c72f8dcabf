// internal/notify/transport.go
package notify

import (
	"context"
	"errors"
)

var ErrNoRecipients = errors.New("message has no recipients")

// Message is one outbound notification. SMS transports only use TextBody.
type Message struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTMLBody   string   `json:"htmlContent"`
	TextBody   string   `json:"textContent"`
	// Key groups messages for brokers, normally the beehive id.
	Key string `json:"-"`
}

// Result is the outcome of a send. Error is free-form transport diagnostics.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// Transport delivers a message. Implementations never panic and report every
// failure through the Result instead of an error return.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) Result
}
