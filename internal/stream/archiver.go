package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danikhandev/serve-u/internal/storage"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Archiver consumes the chat-events topic and applies each event to the
// persistence store. It is the asynchronous half of "relay now, persist
// async": delivery and read timestamps reach the database here, after
// the bus has already relayed them.
type Archiver struct {
	reader *kafka.Reader
	store  storage.Store
	log    *zap.Logger
}

func NewArchiver(brokers []string, topic, groupID string, store storage.Store, log *zap.Logger) *Archiver {
	return &Archiver{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		store: store,
		log:   log,
	}
}

// Run blocks, applying events until ctx is cancelled. Events that fail
// to apply are logged and skipped; the bus already delivered them, so a
// poisoned record must not wedge the whole pipeline.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		m, err := a.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var ev Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			a.log.Warn("archiver: malformed event", zap.Error(err))
			continue
		}
		if err := a.apply(ev); err != nil {
			a.log.Error("archiver: apply failed",
				zap.String("kind", ev.Kind),
				zap.String("conversation", ev.ConversationID),
				zap.Error(err))
		}
	}
}

func (a *Archiver) apply(ev Event) error {
	switch ev.Kind {
	case EventMessagesDelivered:
		return a.store.MarkDelivered(ev.MessageIDs, ev.At)
	case EventMessagesRead:
		return a.store.MarkRead(ev.MessageIDs, ev.ReadBy, ev.At)
	default:
		a.log.Warn("archiver: unknown event kind", zap.String("kind", ev.Kind))
		return nil
	}
}

func (a *Archiver) Close() error {
	return a.reader.Close()
}
