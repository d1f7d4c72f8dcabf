// internal/bus/bus.go
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher pushes payloads to a message broker. Subjects map onto NATS
// subjects or Kafka topics depending on the driver.
type Publisher interface {
	Publish(ctx context.Context, subject, key string, payload []byte) error
	Close() error
}

// Config selects and configures a broker driver.
type Config struct {
	Driver string `mapstructure:"driver"` // none, nats, kafka
	NATS   struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"nats"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	StateSubject        string        `mapstructure:"state_subject"`
	NotificationSubject string        `mapstructure:"notification_subject"`
	PublishTimeout      time.Duration `mapstructure:"publish_timeout"`
}

// New returns the publisher named by cfg.Driver.
func New(cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "nats":
		return NewNATSPublisher(cfg.NATS.URL)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka.Brokers)
	}
	return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, subject, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	return p.Publish(ctx, subject, key, payload)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, []byte) error { return nil }
func (Noop) Close() error                                          { return nil }
