// Package publish ships committed feeds to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/abelbrown/dealfeed/internal/model"
)

// Message is the payload written for each committed feed.
type Message struct {
	Key     string        `json:"key"`
	BuiltAt time.Time     `json:"builtAt"`
	Items   []model.Offer `json:"items"`
}

// KafkaPublisher writes each committed feed as one JSON message.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	key      string
}

// NewKafkaProducer builds a sync producer for a comma-separated broker list.
func NewKafkaProducer(brokers string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	return sarama.NewSyncProducer(splitBrokers(brokers), cfg)
}

// NewKafkaPublisher publishes to topic, keyed by key (e.g. "us:en") so every
// feed for one region lands on the same partition.
func NewKafkaPublisher(producer sarama.SyncProducer, topic, key string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, key: key}
}

// Publish sends the feed. The context is checked before sending only; sarama's
// sync producer has no per-call cancellation.
func (p *KafkaPublisher) Publish(ctx context.Context, feed model.Feed) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(Message{Key: p.key, BuiltAt: feed.BuiltAt, Items: feed.Items})
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(p.key),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("built-at"), Value: []byte(feed.BuiltAt.UTC().Format(time.RFC3339))},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send to %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
