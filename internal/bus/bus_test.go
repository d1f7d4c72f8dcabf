// internal/bus/bus_test.go
package bus

import (
	"context"
	"testing"
)

type capture struct {
	subject, key string
	payload      []byte
}

func (c *capture) Publish(_ context.Context, subject, key string, payload []byte) error {
	c.subject, c.key, c.payload = subject, key, payload
	return nil
}

func (c *capture) Close() error { return nil }

func TestNewDrivers(t *testing.T) {
	p, err := New(Config{})
	if err != nil {
		t.Fatalf("New with empty driver: %v", err)
	}
	if _, ok := p.(Noop); !ok {
		t.Errorf("expected Noop publisher, got %T", p)
	}

	if _, err := New(Config{Driver: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown driver")
	}

	var cfg Config
	cfg.Driver = "kafka"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for kafka without brokers")
	}

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	kp, err := New(cfg)
	if err != nil {
		t.Fatalf("kafka publisher: %v", err)
	}
	defer kp.Close()
	if _, ok := kp.(*KafkaPublisher); !ok {
		t.Errorf("expected *KafkaPublisher, got %T", kp)
	}
}

func TestPublishJSON(t *testing.T) {
	c := &capture{}
	err := PublishJSON(context.Background(), c, "beehive.alerts", "hive-1", map[string]int{"count": 2})
	if err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	if c.subject != "beehive.alerts" || c.key != "hive-1" {
		t.Errorf("unexpected routing %q/%q", c.subject, c.key)
	}
	if string(c.payload) != `{"count":2}` {
		t.Errorf("payload = %s", c.payload)
	}

	if err := PublishJSON(context.Background(), c, "x", "", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}
