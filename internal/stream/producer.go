// Package stream carries chat events from the hub to asynchronous
// persistence. The bus relays first; durability follows through Kafka,
// so a slow database never delays delivery to room members.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event kinds written to the chat-events topic. Message bodies persist
// synchronously through the append route; the stream carries only the
// timestamp transitions the relay already announced.
const (
	EventMessagesDelivered = "messages-delivered"
	EventMessagesRead      = "messages-read"
)

// Event is the persisted form of a relayed bus event.
type Event struct {
	Kind           string    `json:"kind"`
	ConversationID string    `json:"conversationId"`
	MessageIDs     []string  `json:"messageIds"`
	ReadBy         string    `json:"readBy,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher is what the hub needs from the stream.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Producer writes chat events to Kafka, keyed by conversation id so one
// conversation's events stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
