// internal/bus/nats.go
package bus

import (
	"context"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	Conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("beehive-gateway"))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{Conn: conn}, nil
}

// Publish sends the payload on subject. The key travels as a header so
// consumers can group messages per hive.
func (p *NATSPublisher) Publish(ctx context.Context, subject, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Beehive-Key", key)
	}
	return p.Conn.PublishMsg(msg)
}

func (p *NATSPublisher) Close() error {
	if p.Conn != nil {
		if err := p.Conn.Drain(); err != nil {
			p.Conn.Close()
			return err
		}
	}
	return nil
}
