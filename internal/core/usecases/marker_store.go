package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/cityplanner/internal/core/domain"
	"github.com/samirrijal/cityplanner/internal/core/ports"
	"github.com/samirrijal/cityplanner/internal/pkg/metrics"
)

const (
	// markerEventBuffer is how many snapshots may wait for the broker before new
	// ones are dropped.
	markerEventBuffer = 64
	// EventPublishTimeout bounds a single event publish.
	EventPublishTimeout = 5 * time.Second
)

// MarkerStore owns the user and activity marker lists. It is the only place
// either list is mutated.
type MarkerStore struct {
	mu         sync.RWMutex
	users      []domain.UserMarker
	activities []domain.ActivityMarker
	revision   uint64

	lmu       sync.Mutex
	listeners map[int]func(domain.MarkerSnapshot)
	nextID    int

	publisher ports.EventPublisher
	pmu       sync.Mutex
	closed    bool
	events    chan domain.MarkerSnapshot
	drained   chan struct{}
}

// NewMarkerStore creates an empty store. publisher may be nil; otherwise
// snapshots are published from a background goroutine so a slow broker never
// blocks a mutation.
func NewMarkerStore(publisher ports.EventPublisher) *MarkerStore {
	s := &MarkerStore{
		listeners: make(map[int]func(domain.MarkerSnapshot)),
		publisher: publisher,
		drained:   make(chan struct{}),
	}
	if publisher == nil {
		close(s.drained)
		return s
	}
	s.events = make(chan domain.MarkerSnapshot, markerEventBuffer)
	go s.publishLoop()
	return s
}

// Close stops event publishing after the queued snapshots are sent or time out.
// Mutations keep working afterwards but are no longer published.
func (s *MarkerStore) Close() {
	s.pmu.Lock()
	if !s.closed && s.events != nil {
		close(s.events)
	}
	s.closed = true
	s.pmu.Unlock()
	<-s.drained
}

func (s *MarkerStore) publishLoop() {
	defer close(s.drained)
	for snap := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), EventPublishTimeout)
		err := s.publisher.PublishMarkersChanged(ctx, snap)
		cancel()
		if err != nil {
			slog.Warn("publish markers changed", "revision", snap.Revision, "error", err)
		}
	}
}

func (s *MarkerStore) enqueue(snap domain.MarkerSnapshot) {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.closed || s.events == nil {
		return
	}
	select {
	case s.events <- snap:
	default:
		slog.Warn("marker event dropped, publisher is behind", "revision", snap.Revision)
	}
}

// AddUserMarker appends coord to the user list and returns its index.
// Coordinates are not validated or deduplicated here.
func (s *MarkerStore) AddUserMarker(coord domain.Coordinate) int {
	s.mu.Lock()
	s.users = append(s.users, domain.UserMarker{Position: coord})
	index := len(s.users) - 1
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return index
}

// RemoveUserMarker drops the marker at index. An out-of-range index leaves the
// list untouched and does not count as a change.
func (s *MarkerStore) RemoveUserMarker(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.users) {
		s.mu.Unlock()
		return false
	}
	next := make([]domain.UserMarker, 0, len(s.users)-1)
	next = append(next, s.users[:index]...)
	next = append(next, s.users[index+1:]...)
	s.users = next
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// ClearUserMarkers empties the user list.
func (s *MarkerStore) ClearUserMarkers() {
	s.mu.Lock()
	s.users = nil
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetActivityMarkers replaces the activity list as a whole.
func (s *MarkerStore) SetActivityMarkers(list []domain.ActivityMarker) {
	s.mu.Lock()
	s.activities = append([]domain.ActivityMarker(nil), list...)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// ClearActivityMarkers replaces the activity list with an empty one.
func (s *MarkerStore) ClearActivityMarkers() {
	s.SetActivityMarkers(nil)
}

// UserMarkers returns a copy of the user list.
func (s *MarkerStore) UserMarkers() []domain.UserMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.UserMarker(nil), s.users...)
}

// ActivityMarkers returns a copy of the activity list.
func (s *MarkerStore) ActivityMarkers() []domain.ActivityMarker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ActivityMarker(nil), s.activities...)
}

// Snapshot returns a copy of both lists at the current revision.
func (s *MarkerStore) Snapshot() domain.MarkerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run after every change. Concurrent mutations may
// deliver snapshots out of order; listeners should compare Revision.
func (s *MarkerStore) Subscribe(fn func(domain.MarkerSnapshot)) (cancel func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *MarkerStore) commitLocked() domain.MarkerSnapshot {
	s.revision++
	metrics.UserMarkers.Set(float64(len(s.users)))
	metrics.ActivityMarkers.Set(float64(len(s.activities)))
	return s.snapshotLocked()
}

func (s *MarkerStore) snapshotLocked() domain.MarkerSnapshot {
	return domain.MarkerSnapshot{
		Revision:   s.revision,
		Users:      append([]domain.UserMarker{}, s.users...),
		Activities: append([]domain.ActivityMarker{}, s.activities...),
	}
}

func (s *MarkerStore) notify(snap domain.MarkerSnapshot) {
	s.lmu.Lock()
	fns := make([]func(domain.MarkerSnapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}

	s.enqueue(snap)
}
