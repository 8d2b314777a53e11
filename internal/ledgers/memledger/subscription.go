package memledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
)

// subscription adapts one watermill topic stream to core.Subscription. Each
// subscription owns a derived context so Unsubscribe tears down only itself.
type subscription struct {
	events chan core.RawEvent
	cancel context.CancelFunc
	once   sync.Once
}

func (m *MemoryLedger) subscribe(ctx context.Context, topic string) (core.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := m.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &subscription{
		events: make(chan core.RawEvent),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		for msg := range msgs {
			var raw core.RawEvent
			if err := json.Unmarshal(msg.Payload, &raw); err != nil {
				slog.Error("dropping undecodable ledger event", "topic", topic, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case s.events <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s, nil
}

func (s *subscription) Events() <-chan core.RawEvent {
	return s.events
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
