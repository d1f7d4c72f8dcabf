// internal/notify/log.go
package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTransport writes the message to the log and reports success. It stands
// in for a real gateway in development.
type LogTransport struct {
	channel string
	logger  *zap.Logger
}

func NewLogTransport(channel string, logger *zap.Logger) *LogTransport {
	return &LogTransport{channel: channel, logger: logger}
}

func (t *LogTransport) Name() string { return "log-" + t.channel }

func (t *LogTransport) Send(_ context.Context, msg Message) Result {
	if len(msg.Recipients) == 0 {
		return failed(ErrNoRecipients)
	}
	id := uuid.NewString()
	t.logger.Info("notification would be sent",
		zap.String("channel", t.channel),
		zap.String("message_id", id),
		zap.String("recipients", strings.Join(msg.Recipients, ", ")),
		zap.String("subject", msg.Subject),
		zap.String("preview", msg.TextBody),
	)
	return Result{Success: true, MessageID: id}
}
