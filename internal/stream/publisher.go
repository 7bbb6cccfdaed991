package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes ledger events to Kafka, one writer per topic.
type Publisher struct {
	bets        *kafka.Writer
	settlements *kafka.Writer
}

// NewPublisher creates a Publisher for the given broker address.
func NewPublisher(brokers string) *Publisher {
	return &Publisher{
		bets:        newWriter(brokers, TopicBetPlaced),
		settlements: newWriter(brokers, TopicEventSettled),
	}
}

func newWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// PublishBetPlaced emits a bet_placed message keyed by event id.
func (p *Publisher) PublishBetPlaced(ctx context.Context, e BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, p.bets, strconv.FormatInt(e.EventID, 10), e)
}

// PublishEventSettled emits an event_settled message keyed by event id.
func (p *Publisher) PublishEventSettled(ctx context.Context, e EventSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.write(ctx, p.settlements, strconv.FormatInt(e.EventID, 10), e)
}

func (p *Publisher) write(ctx context.Context, w *kafka.Writer, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", w.Topic, err)
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	if err := p.bets.Close(); err != nil {
		return err
	}
	return p.settlements.Close()
}
