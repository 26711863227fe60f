package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/usecases"
)

// --- Mock Recommender ---

type mockRecommender struct {
	calls       atomic.Int32
	recommendFn func(ctx context.Context, requestID string, points []domain.Coordinate) (*domain.Recommendations, error)
}

func (m *mockRecommender) Recommend(ctx context.Context, requestID string, points []domain.Coordinate) (*domain.Recommendations, error) {
	m.calls.Add(1)
	if m.recommendFn != nil {
		return m.recommendFn(ctx, requestID, points)
	}
	return &domain.Recommendations{}, nil
}

func places(names ...string) []domain.ActivityMarker {
	out := make([]domain.ActivityMarker, len(names))
	for i, n := range names {
		out[i] = domain.ActivityMarker{Name: n, Category: "museum", Position: coord(48.86, 2.33+float64(i)/100)}
	}
	return out
}

func fixedIDs() usecases.ClientOption {
	return usecases.WithRequestIDs(func() string { return "req-test" })
}

// --- Scenarios ---

func TestRecommendationClient_ScenarioA_Success(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))
	store.AddUserMarker(coord(48.85, 2.35))

	var sent []domain.Coordinate
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		sent = points
		return &domain.Recommendations{Activities: places("Louvre", "Pont Neuf")}, nil
	}}
	pub := &mockPublisher{}
	client := usecases.NewRecommendationClient(store, rec, usecases.WithPublisher(pub), fixedIDs())

	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Kind, outcome.Reason)
	}
	if outcome.Notice != "Found 2 activities!" {
		t.Errorf("unexpected notice %q", outcome.Notice)
	}
	if got := len(store.ActivityMarkers()); got != 2 {
		t.Errorf("expected 2 activity markers, got %d", got)
	}
	if len(sent) != 2 || sent[0] != coord(48.8566, 2.3522) || sent[1] != coord(48.85, 2.35) {
		t.Errorf("unexpected payload %+v", sent)
	}
	if outcome.RequestID != "req-test" || outcome.Submitted != 2 {
		t.Errorf("unexpected outcome metadata %+v", outcome)
	}
	waitFor(t, "published outcome", func() bool { _, n := pub.published(); return n == 1 })
	if pub.outcomes[0].Kind != domain.OutcomeSuccess {
		t.Errorf("expected a published success outcome, got %+v", pub.outcomes)
	}
	if client.Status().State != domain.StateIdle {
		t.Errorf("expected idle after completion, got %s", client.Status().State)
	}
}

func TestRecommendationClient_ScenarioB_NoMarkers(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	rec := &mockRecommender{}
	client := usecases.NewRecommendationClient(store, rec)

	_, err := client.FindActivities(context.Background())
	if !errors.Is(err, domain.ErrNoMarkers) {
		t.Fatalf("expected ErrNoMarkers, got %v", err)
	}
	if domain.NoticeFor(err) != "Please add at least one marker." {
		t.Errorf("unexpected notice %q", domain.NoticeFor(err))
	}
	if rec.calls.Load() != 0 {
		t.Errorf("expected no transport calls, got %d", rec.calls.Load())
	}
	if client.Status().State != domain.StateIdle {
		t.Error("refusal must leave the client idle")
	}
}

func TestRecommendationClient_ScenarioC_Empty(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))
	store.SetActivityMarkers(places("stale"))

	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		return &domain.Recommendations{Activities: []domain.ActivityMarker{}}, nil
	}}
	client := usecases.NewRecommendationClient(store, rec)

	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != domain.OutcomeEmpty {
		t.Fatalf("expected empty, got %s", outcome.Kind)
	}
	if outcome.Notice != "no activities found." {
		t.Errorf("unexpected notice %q", outcome.Notice)
	}
	if len(store.ActivityMarkers()) != 0 {
		t.Error("expected activities cleared")
	}
}

func TestRecommendationClient_ScenarioD_Timeout(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))
	store.SetActivityMarkers(places("stale"))

	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	client := usecases.NewRecommendationClient(store, rec, usecases.WithTimeout(50*time.Millisecond))

	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailure {
		t.Fatalf("expected failure, got %s", outcome.Kind)
	}
	if outcome.Notice != domain.NoticeFailure {
		t.Errorf("unexpected notice %q", outcome.Notice)
	}
	if len(store.ActivityMarkers()) != 0 {
		t.Error("failure must clear stale activities")
	}
	if client.Status().Requesting() {
		t.Error("control must be re-enabled after failure")
	}

	// The slot is free again.
	rec.recommendFn = func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		return &domain.Recommendations{Activities: places("Louvre")}, nil
	}
	if _, err := client.FindActivities(context.Background()); err != nil {
		t.Fatalf("second request refused: %v", err)
	}
}

// --- Properties ---

func TestRecommendationClient_DropsCountedPlaces(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		return &domain.Recommendations{Activities: places("a", "b", "c"), Dropped: 4}, nil
	}}
	client := usecases.NewRecommendationClient(store, rec)

	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(store.ActivityMarkers()) != 3 || outcome.Dropped != 4 {
		t.Errorf("expected 3 activities and 4 dropped, got %d and %d", len(store.ActivityMarkers()), outcome.Dropped)
	}
}

func TestRecommendationClient_FailureAfterSuccessLeavesNoStaleData(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))

	fail := false
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		if fail {
			return nil, domain.ErrServiceRejected
		}
		return &domain.Recommendations{Activities: places("a", "b")}, nil
	}}
	client := usecases.NewRecommendationClient(store, rec)

	if _, err := client.FindActivities(context.Background()); err != nil {
		t.Fatal(err)
	}
	fail = true
	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != domain.OutcomeFailure || len(outcome.Activities) != 0 {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if len(store.ActivityMarkers()) != 0 {
		t.Error("expected no activities after failure")
	}
	if last := client.Status().Last; last == nil || last.Kind != domain.OutcomeFailure {
		t.Errorf("expected last outcome failure, got %+v", last)
	}
}

func TestRecommendationClient_SecondStartSuppressed(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(48.8566, 2.3522))

	release := make(chan struct{})
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		<-release
		return &domain.Recommendations{Activities: places("a")}, nil
	}}
	client := usecases.NewRecommendationClient(store, rec)

	task, err := client.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !client.Status().Requesting() {
		t.Error("expected requesting while in flight")
	}

	if _, err := client.Start(context.Background()); !errors.Is(err, domain.ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight, got %v", err)
	}

	close(release)
	if got := task.Outcome(); got.Kind != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", got.Kind)
	}
	if rec.calls.Load() != 1 {
		t.Errorf("expected exactly 1 transport call, got %d", rec.calls.Load())
	}
}

func TestRecommendationClient_PayloadIsSnapshot(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(1, 1))
	store.AddUserMarker(coord(2, 2))

	started := make(chan struct{})
	release := make(chan struct{})
	var sent []domain.Coordinate
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		close(started)
		<-release
		sent = append([]domain.Coordinate(nil), points...)
		return &domain.Recommendations{Activities: places("a")}, nil
	}}
	client := usecases.NewRecommendationClient(store, rec)

	task, err := client.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	<-started
	store.RemoveUserMarker(0)
	store.AddUserMarker(coord(3, 3))
	store.ClearUserMarkers()
	store.AddUserMarker(coord(4, 4))
	close(release)
	task.Outcome()

	if len(sent) != 2 || sent[0] != coord(1, 1) || sent[1] != coord(2, 2) {
		t.Errorf("in-flight payload changed: %+v", sent)
	}
	if got := store.UserMarkers(); len(got) != 1 || got[0].Position != coord(4, 4) {
		t.Errorf("later mutations must apply to the store, got %+v", got)
	}
}

func TestRecommendationClient_PanicReturnsToIdle(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(1, 1))
	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		panic("decoder exploded")
	}}
	client := usecases.NewRecommendationClient(store, rec)

	outcome, err := client.FindActivities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Kind != domain.OutcomeFailure {
		t.Errorf("expected failure, got %s", outcome.Kind)
	}
	if client.Status().Requesting() {
		t.Error("expected idle after panic")
	}
}

func TestRecommendationClient_SubscribeSeesBothTransitions(t *testing.T) {
	store := usecases.NewMarkerStore(nil)
	store.AddUserMarker(coord(1, 1))
	client := usecases.NewRecommendationClient(store, &mockRecommender{})

	var mu sync.Mutex
	var states []domain.ClientState
	cancel := client.Subscribe(func(st domain.ClientStatus) {
		mu.Lock()
		states = append(states, st.State)
		mu.Unlock()
	})
	defer cancel()

	if _, err := client.FindActivities(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[1] != domain.StateIdle {
		t.Fatalf("expected [requesting idle], got %v", states)
	}
}

func TestRecommendationClient_BlockedPublisherStillReturnsToIdle(t *testing.T) {
	pub := &blockingPublisher{}
	store := usecases.NewMarkerStore(pub)
	store.AddUserMarker(coord(48.86, 2.33))

	rec := &mockRecommender{recommendFn: func(ctx context.Context, id string, points []domain.Coordinate) (*domain.Recommendations, error) {
		return nil, errors.New("connection refused")
	}}
	client := usecases.NewRecommendationClient(store, rec, usecases.WithPublisher(pub))

	task, err := client.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatalf("task not done; state=%s", client.Status().State)
	}
	if got := task.Outcome().Kind; got != domain.OutcomeFailure {
		t.Errorf("expected failure, got %s", got)
	}
	if st := client.Status().State; st != domain.StateIdle {
		t.Errorf("expected idle, got %s", st)
	}

	// The slot is free again.
	next, err := client.Start(context.Background())
	if err != nil {
		t.Fatalf("second start refused: %v", err)
	}
	select {
	case <-next.Done():
	case <-time.After(time.Second):
		t.Fatal("second task not done")
	}
}
