package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoMarkers is returned when recommendations are requested with an empty
	// marker list. No request is sent.
	ErrNoMarkers = errors.New("no user markers to submit")

	// ErrRequestInFlight is returned when a recommendation request is already
	// running.
	ErrRequestInFlight = errors.New("recommendation request already in flight")

	// ErrServiceRejected marks a well-formed response whose status is not success
	// or whose place list is missing.
	ErrServiceRejected = errors.New("recommendation service rejected the request")
)

// User-visible notices.
const (
	NoticeNoMarkers = "Please add at least one marker."
	NoticeEmpty     = "no activities found."
	NoticeFailure   = "Failed to send coordinates to backend."
	NoticeInFlight  = "Already looking for activities..."
)

// NoticeFound is the notice for a successful request with n activities.
func NoticeFound(n int) string { return fmt.Sprintf("Found %d activities!", n) }

// ClientState is the recommendation client's state machine position.
type ClientState string

const (
	StateIdle       ClientState = "idle"
	StateRequesting ClientState = "requesting"
)

// OutcomeKind classifies a finished recommendation request.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeEmpty   OutcomeKind = "empty"
	OutcomeFailure OutcomeKind = "failure"
)

// Recommendations is a validated service reply. Dropped counts places that were
// discarded for missing or invalid fields.
type Recommendations struct {
	Activities []ActivityMarker
	Dropped    int
}

// Outcome is the result of one recommendation task.
type Outcome struct {
	RequestID  string           `json:"request_id"`
	Kind       OutcomeKind      `json:"kind"`
	Activities []ActivityMarker `json:"activities"`
	Dropped    int              `json:"dropped"`
	Submitted  int              `json:"submitted"`
	Reason     string           `json:"reason,omitempty"`
	Notice     string           `json:"notice"`
	Duration   time.Duration    `json:"duration_ns"`
}

// NoticeFor returns the user-visible notice for a refusal error.
func NoticeFor(err error) string {
	switch {
	case errors.Is(err, ErrNoMarkers):
		return NoticeNoMarkers
	case errors.Is(err, ErrRequestInFlight):
		return NoticeInFlight
	default:
		return NoticeFailure
	}
}

// ClientStatus is the recommendation client's current state and the outcome of
// its most recent finished request, if any.
type ClientStatus struct {
	State ClientState `json:"state"`
	Last  *Outcome    `json:"last_outcome,omitempty"`
}

// Requesting reports whether a request is in flight.
func (s ClientStatus) Requesting() bool { return s.State == StateRequesting }
