package monitor

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
)

// Entry is a stored pending async operation.
type Entry struct {
	// ID identifies the entry in the store.
	ID string `json:"id"`

	// Location is the monitor URL to poll.
	Location string `json:"location"`

	// RetryAfterSeconds is the delay the service asked for, if any.
	RetryAfterSeconds *int `json:"retry_after_seconds,omitempty"`

	// PreferenceApplied records whether the service honoured respond-async.
	PreferenceApplied bool `json:"preference_applied"`

	// AcceptedAt is when the 202 response was resolved.
	AcceptedAt time.Time `json:"accepted_at"`

	// NotBefore is the earliest time polling should start.
	NotBefore time.Time `json:"not_before"`
}

// NewEntry builds an entry from a resolved monitor.
func NewEntry(id string, m async.Monitor, acceptedAt time.Time) (*Entry, error) {
	if m.Location == nil {
		return nil, fmt.Errorf("monitor location is required")
	}

	entry := &Entry{
		ID:                id,
		Location:          m.Location.String(),
		PreferenceApplied: m.PreferenceApplied,
		AcceptedAt:        acceptedAt,
		NotBefore:         acceptedAt,
	}
	if d, ok := m.RetryAfterDuration(); ok {
		seconds := *m.RetryAfter
		entry.RetryAfterSeconds = &seconds
		entry.NotBefore = acceptedAt.Add(d)
	}
	return entry, nil
}

// IsReady returns true if polling may start at the given instant.
func (e *Entry) IsReady(now time.Time) bool {
	return !now.Before(e.NotBefore)
}

// Monitor converts the entry back to an async.Monitor.
func (e *Entry) Monitor() (async.Monitor, error) {
	location, err := url.Parse(e.Location)
	if err != nil {
		return async.Monitor{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return async.Monitor{
		Location:          location,
		RetryAfter:        e.RetryAfterSeconds,
		PreferenceApplied: e.PreferenceApplied,
	}, nil
}
