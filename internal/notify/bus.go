// internal/notify/bus.go
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/bus"
)

// BusTransport hands messages to the broker for an external delivery worker.
type BusTransport struct {
	channel   string
	subject   string
	publisher bus.Publisher
}

func NewBusTransport(channel, subject string, publisher bus.Publisher) *BusTransport {
	return &BusTransport{channel: channel, subject: subject, publisher: publisher}
}

func (t *BusTransport) Name() string { return "bus-" + t.channel }

type busCommand struct {
	ID      string  `json:"id"`
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

func (t *BusTransport) Send(ctx context.Context, msg Message) Result {
	if len(msg.Recipients) == 0 {
		return failed(ErrNoRecipients)
	}
	cmd := busCommand{ID: uuid.NewString(), Channel: t.channel, Message: msg}
	if err := bus.PublishJSON(ctx, t.publisher, t.subject, msg.Key, cmd); err != nil {
		return failed(err)
	}
	return Result{Success: true, MessageID: cmd.ID}
}
