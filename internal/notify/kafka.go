package notify

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher publishes identity events to a Kafka topic. Events are
// keyed by the authenticated user id (or guest id pre-sign-in) so one
// caller's events land in order on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher from a comma-separated broker list.
// Returns nil when no brokers are configured; callers fall back to Noop.
func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.Marshal()
	if err != nil {
		return err
	}

	key := event.UserID
	if key == "" {
		key = event.GuestID
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  event.At,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
