package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// Subscriber consumes planner events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeMarkersChanged delivers every marker snapshot to handler through the
// named durable consumer. Messages the handler fails on are redelivered up to
// three times.
func (s *Subscriber) SubscribeMarkersChanged(ctx context.Context, durable string, handler func(ctx context.Context, snap domain.MarkerSnapshot) error) error {
	sub, err := s.js.Subscribe(SubjectMarkersChanged, func(msg *nats.Msg) {
		var ev MarkersChangedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev.MarkerSnapshot); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains the connection.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
