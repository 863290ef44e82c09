package async

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// maxDrainBytes bounds how much of a 202 body is read before closing it.
const maxDrainBytes = 64 << 10

// Resolver classifies raw batch responses into Handles.
type Resolver struct {
	version Version
	logger  zerolog.Logger
}

// NewResolver creates a resolver for the negotiated protocol version.
// An empty version defaults to V40.
func NewResolver(version Version, logger zerolog.Logger) *Resolver {
	if version == "" {
		version = V40
	}
	return &Resolver{
		version: version,
		logger:  logger,
	}
}

// Resolve classifies resp.
//
// A 202 Accepted response yields a pending Handle; its monitor details are
// extracted before the body is drained and closed. Any other status yields
// a final Handle wrapping resp unchanged, with the body left open.
func (r *Resolver) Resolve(resp *http.Response) (*Handle, error) {
	if resp == nil {
		Resolutions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("response cannot be nil")
	}

	if resp.StatusCode != http.StatusAccepted {
		Resolutions.WithLabelValues(string(OutcomeFinal)).Inc()
		r.logger.Debug().
			Int("status", resp.StatusCode).
			Msg("Batch response is final")
		return &Handle{response: resp}, nil
	}

	monitor, err := r.monitorDetails(resp)
	if err != nil {
		// No handle escapes, so nobody else can release the body.
		_ = releaseBody(resp)
		Resolutions.WithLabelValues("error").Inc()
		r.logger.Warn().Err(err).Msg("Invalid async response")
		return nil, err
	}

	if err := releaseBody(resp); err != nil {
		monitor.CleanupWarning = err
		CleanupFailures.Inc()
		r.logger.Warn().
			Err(err).
			Str("location", monitor.Location.String()).
			Msg("Failed to release accepted response body")
	}

	Resolutions.WithLabelValues(string(OutcomePending)).Inc()
	event := r.logger.Debug().
		Str("location", monitor.Location.String()).
		Bool("preference_applied", monitor.PreferenceApplied)
	if monitor.RetryAfter != nil {
		event = event.Int("retry_after", *monitor.RetryAfter)
	}
	event.Msg("Batch accepted for async processing")

	return &Handle{monitor: monitor}, nil
}

func (r *Resolver) monitorDetails(resp *http.Response) (*Monitor, error) {
	location, err := parseLocation(resp)
	if err != nil {
		return nil, err
	}

	retryAfter, err := parseRetryAfter(resp.Header)
	if err != nil {
		return nil, err
	}

	return &Monitor{
		Location:          location,
		RetryAfter:        retryAfter,
		PreferenceApplied: r.preferenceApplied(resp.Header),
	}, nil
}

// parseLocation reads the first Location value. Relative references are
// resolved against the request URL when it is known.
func parseLocation(resp *http.Response) (*url.URL, error) {
	values := resp.Header.Values(HeaderLocation)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil, NewError(ErrProtocolViolation, "missing monitor location")
	}

	location, err := url.Parse(values[0])
	if err != nil {
		return nil, malformedHeader(HeaderLocation, values[0], err)
	}

	if resp.Request != nil && resp.Request.URL != nil {
		location = resp.Request.URL.ResolveReference(location)
	}
	return location, nil
}

// parseRetryAfter reads the first Retry-After value as delay-seconds.
// Returns nil when the header is absent.
func parseRetryAfter(headers http.Header) (*int, error) {
	values := headers.Values(HeaderRetryAfter)
	if len(values) == 0 {
		return nil, nil
	}

	seconds, err := strconv.Atoi(values[0])
	if err != nil {
		return nil, malformedHeader(HeaderRetryAfter, values[0], err)
	}
	if seconds < 0 {
		return nil, malformedHeader(HeaderRetryAfter, values[0], errors.New("negative delay"))
	}
	return &seconds, nil
}

func (r *Resolver) preferenceApplied(headers http.Header) bool {
	token := r.version.RespondAsync()
	for _, value := range headers.Values(HeaderPreferenceApplied) {
		for _, applied := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(applied), token) {
				return true
			}
		}
	}
	return false
}

// releaseBody drains and closes the body, then detaches it from resp.
func releaseBody(resp *http.Response) error {
	if resp.Body == nil {
		return nil
	}
	_, drainErr := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	closeErr := resp.Body.Close()
	resp.Body = http.NoBody
	return errors.Join(drainErr, closeErr)
}
