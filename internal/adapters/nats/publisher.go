package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/cityplanner/internal/core/domain"
)

// publishTimeout bounds the wait for a JetStream ack when the caller's context
// has no deadline.
const publishTimeout = 5 * time.Second

// Subjects carried by the PLANNER_EVENTS stream.
const (
	StreamName            = "PLANNER_EVENTS"
	SubjectMarkersChanged = "planner.markers.changed"
	subjectOutcomePrefix  = "planner.recommendations."
)

// OutcomeSubject returns the subject an outcome of the given kind is published on.
func OutcomeSubject(kind domain.OutcomeKind) string {
	return subjectOutcomePrefix + string(kind)
}

// MarkersChangedEvent is the payload published after every store mutation.
type MarkersChangedEvent struct {
	domain.MarkerSnapshot
	At time.Time `json:"at"`
}

// OutcomeEvent is the payload published after every finished recommendation.
type OutcomeEvent struct {
	domain.Outcome
	At time.Time `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	now  func() time.Time
}

// NewPublisher connects to NATS and makes sure the planner stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"planner.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js, now: time.Now}, nil
}

// PublishMarkersChanged publishes a store snapshot.
func (p *Publisher) PublishMarkersChanged(ctx context.Context, snap domain.MarkerSnapshot) error {
	data, err := json.Marshal(MarkersChangedEvent{MarkerSnapshot: snap, At: p.now().UTC()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = p.js.Publish(SubjectMarkersChanged, data, nats.Context(ctx))
	return err
}

// PublishOutcome publishes a finished recommendation on its kind's subject.
func (p *Publisher) PublishOutcome(ctx context.Context, o domain.Outcome) error {
	data, err := json.Marshal(OutcomeEvent{Outcome: o, At: p.now().UTC()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = p.js.Publish(OutcomeSubject(o.Kind), data, nats.Context(ctx), nats.MsgId(o.RequestID))
	return err
}

// Ping round-trips to the server.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return p.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection that keeps reconnecting.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
