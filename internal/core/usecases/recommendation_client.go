package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/ports"
	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
)

// DefaultRequestTimeout bounds a recommendation exchange when none is configured.
const DefaultRequestTimeout = 10 * time.Second

// RecommendationClient sends the store's user markers to the recommendation
// service and folds the reply back into the store's activity list.
//
// At most one request runs at a time. Its state machine is
// idle -> requesting -> idle, and every exit path, including a panicking
// transport, clears the in-flight slot and returns to idle.
type RecommendationClient struct {
	store     *MarkerStore
	transport ports.Recommender
	publisher ports.EventPublisher
	timeout   time.Duration
	newID     func() string

	gate *semaphore.Weighted

	mu        sync.Mutex
	state     domain.ClientState
	last      *domain.Outcome
	listeners map[int]func(domain.ClientStatus)
	nextID    int
}

// ClientOption configures a RecommendationClient.
type ClientOption func(*RecommendationClient)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RecommendationClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPublisher publishes every outcome.
func WithPublisher(p ports.EventPublisher) ClientOption {
	return func(c *RecommendationClient) { c.publisher = p }
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(fn func() string) ClientOption {
	return func(c *RecommendationClient) { c.newID = fn }
}

// NewRecommendationClient creates an idle client bound to store.
func NewRecommendationClient(store *MarkerStore, transport ports.Recommender, opts ...ClientOption) *RecommendationClient {
	c := &RecommendationClient{
		store:     store,
		transport: transport,
		timeout:   DefaultRequestTimeout,
		newID:     uuid.NewString,
		gate:      semaphore.NewWeighted(1),
		state:     domain.StateIdle,
		listeners: make(map[int]func(domain.ClientStatus)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Task is a running recommendation request.
type Task struct {
	ID        string
	Submitted int

	done    chan struct{}
	outcome domain.Outcome
}

// Done is closed once the outcome is folded into the store.
func (t *Task) Done() <-chan struct{} { return t.done }

// Outcome blocks until the task finishes.
func (t *Task) Outcome() domain.Outcome {
	<-t.done
	return t.outcome
}

// Start snapshots the user markers and sends them in the background. It refuses
// with domain.ErrNoMarkers when there is nothing to send and with
// domain.ErrRequestInFlight while another task runs.
func (c *RecommendationClient) Start(ctx context.Context) (*Task, error) {
	points := c.store.Snapshot().Coordinates()
	if len(points) == 0 {
		metrics.RecommendationsRefused.WithLabelValues("no_markers").Inc()
		return nil, domain.ErrNoMarkers
	}

	c.mu.Lock()
	if !c.gate.TryAcquire(1) {
		c.mu.Unlock()
		metrics.RecommendationsRefused.WithLabelValues("in_flight").Inc()
		return nil, domain.ErrRequestInFlight
	}
	c.state = domain.StateRequesting
	c.mu.Unlock()
	c.notify()

	task := &Task{ID: c.newID(), Submitted: len(points), done: make(chan struct{})}
	go c.run(ctx, task, points)
	return task, nil
}

// FindActivities runs a task and waits for its outcome.
func (c *RecommendationClient) FindActivities(ctx context.Context) (domain.Outcome, error) {
	task, err := c.Start(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	return task.Outcome(), nil
}

// Status returns the current state and the last outcome.
func (c *RecommendationClient) Status() domain.ClientStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Subscribe registers fn to run on every state change with the status current at
// delivery time.
func (c *RecommendationClient) Subscribe(fn func(domain.ClientStatus)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *RecommendationClient) run(ctx context.Context, task *Task, points []domain.Coordinate) {
	start := time.Now()
	outcome := domain.Outcome{RequestID: task.ID, Submitted: len(points)}

	defer func() {
		if r := recover(); r != nil {
			c.store.ClearActivityMarkers()
			outcome = c.failure(outcome, fmt.Errorf("transport panic: %v", r))
		}
		outcome.Duration = time.Since(start)
		task.outcome = outcome

		c.mu.Lock()
		c.state = domain.StateIdle
		c.last = &outcome
		c.gate.Release(1)
		c.mu.Unlock()

		c.record(ctx, outcome)
		c.notify()
		close(task.done)
	}()

	ctx, span := otel.Tracer("cityplanner/recommendations").Start(ctx, "RecommendationClient.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", task.ID),
		attribute.Int("request.points", len(points)),
	)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	recs, err := c.transport.Recommend(reqCtx, task.ID, points)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.store.ClearActivityMarkers()
		outcome = c.failure(outcome, err)
	case recs == nil || len(recs.Activities) == 0:
		c.store.ClearActivityMarkers()
		outcome.Kind = domain.OutcomeEmpty
		outcome.Notice = domain.NoticeEmpty
		if recs != nil {
			outcome.Dropped = recs.Dropped
		}
	default:
		c.store.SetActivityMarkers(recs.Activities)
		outcome.Kind = domain.OutcomeSuccess
		outcome.Activities = append([]domain.ActivityMarker(nil), recs.Activities...)
		outcome.Dropped = recs.Dropped
		outcome.Notice = domain.NoticeFound(len(recs.Activities))
	}
	span.SetAttributes(
		attribute.String("outcome.kind", string(outcome.Kind)),
		attribute.Int("outcome.activities", len(outcome.Activities)),
	)
}

func (c *RecommendationClient) failure(o domain.Outcome, err error) domain.Outcome {
	o.Kind = domain.OutcomeFailure
	o.Activities = nil
	o.Reason = err.Error()
	o.Notice = domain.NoticeFailure
	return o
}

func (c *RecommendationClient) record(ctx context.Context, o domain.Outcome) {
	metrics.RecommendationRequests.WithLabelValues(string(o.Kind)).Inc()
	metrics.RecommendationDuration.WithLabelValues(string(o.Kind)).Observe(o.Duration.Seconds())
	if o.Dropped > 0 {
		metrics.RecommendationPlacesDropped.Add(float64(o.Dropped))
	}

	log := slog.Default().With("request_id", o.RequestID, "kind", o.Kind)
	if o.Kind == domain.OutcomeFailure {
		log.Warn("recommendation failed", "points", o.Submitted, "reason", o.Reason, "duration", o.Duration.String())
	} else {
		log.Info("recommendation finished", "points", o.Submitted,
			"activities", len(o.Activities), "dropped", o.Dropped, "duration", o.Duration.String())
	}

	if c.publisher != nil {
		// Off the exit path: the task finishes whether or not the broker answers.
		go func() {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), EventPublishTimeout)
			defer cancel()
			if err := c.publisher.PublishOutcome(pctx, o); err != nil {
				log.Warn("publish outcome", "error", err)
			}
		}()
	}
}

func (c *RecommendationClient) statusLocked() domain.ClientStatus {
	st := domain.ClientStatus{State: c.state}
	if c.last != nil {
		last := *c.last
		st.Last = &last
	}
	return st
}

func (c *RecommendationClient) notify() {
	c.mu.Lock()
	st := c.statusLocked()
	fns := make([]func(domain.ClientStatus), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
