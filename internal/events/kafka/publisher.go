package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	interfaces "github.com/sheikh-saqib/network-ledger/internal/interfaces"
	"github.com/sheikh-saqib/network-ledger/internal/models/events"
)

// Publisher writes events as JSON to one topic per event name:
// TopicPrefix + EventName().
type Publisher struct {
	writer      *kafka.Writer
	topicPrefix string
}

func NewPublisher(brokers []string, topicPrefix string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			Compression:            kafka.Lz4,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		topicPrefix: topicPrefix,
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := encodeMessage(p.topicPrefix, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventName(), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// encodeMessage builds the kafka message for event. Keyed events keep their
// partition key so per-member ordering holds.
func encodeMessage(topicPrefix string, event events.Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	msg := kafka.Message{
		Topic: topicPrefix + event.EventName(),
		Value: data,
		Headers: []kafka.Header{
			{Key: headerEventName, Value: []byte(event.EventName())},
		},
	}
	if keyed, ok := event.(events.Keyed); ok {
		msg.Key = []byte(keyed.PartitionKey())
	}
	return msg, nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
