package async

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Outcome identifies which shape a Handle holds.
type Outcome string

const (
	// OutcomeFinal means the service answered with the batch result.
	OutcomeFinal Outcome = "final"

	// OutcomePending means the service accepted the batch for async processing.
	OutcomePending Outcome = "pending"
)

// Monitor describes an accepted async operation that must be polled later.
type Monitor struct {
	// Location is the monitor URL to poll. Always set.
	Location *url.URL

	// RetryAfter is the suggested minimum delay in seconds before polling.
	// Nil when the service did not send Retry-After.
	RetryAfter *int

	// PreferenceApplied is true when the service echoed respond-async.
	PreferenceApplied bool

	// CleanupWarning records a failure to release the 202 response body.
	// It never affects the classification.
	CleanupWarning error
}

// RetryAfterDuration returns RetryAfter as a duration and whether it was set.
func (m Monitor) RetryAfterDuration() (time.Duration, bool) {
	if m.RetryAfter == nil {
		return 0, false
	}
	return time.Duration(*m.RetryAfter) * time.Second, true
}

// Handle is the resolved outcome of an async request: exactly one of a
// final response or a pending monitor.
type Handle struct {
	response *http.Response
	monitor  *Monitor
}

// NewFinal wraps a final response. The body is left for the caller.
func NewFinal(resp *http.Response) (*Handle, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	return &Handle{response: resp}, nil
}

// NewPending creates a pending handle. The monitor location is mandatory.
func NewPending(m Monitor) (*Handle, error) {
	if m.Location == nil || m.Location.String() == "" {
		return nil, NewError(ErrProtocolViolation, "missing monitor location")
	}
	if m.RetryAfter != nil && *m.RetryAfter < 0 {
		return nil, NewError(ErrMalformedHeader, "negative retry-after")
	}
	return &Handle{monitor: &m}, nil
}

// Outcome reports which shape the handle holds.
func (h *Handle) Outcome() Outcome {
	if h.monitor != nil {
		return OutcomePending
	}
	return OutcomeFinal
}

// IsPending reports whether the operation still has to be polled.
func (h *Handle) IsPending() bool {
	return h.monitor != nil
}

// Response returns the final response, or false for a pending handle.
func (h *Handle) Response() (*http.Response, bool) {
	if h.monitor != nil {
		return nil, false
	}
	return h.response, true
}

// Monitor returns a copy of the monitor details, or false for a final handle.
func (h *Handle) Monitor() (Monitor, bool) {
	if h.monitor == nil {
		return Monitor{}, false
	}
	return *h.monitor, true
}
