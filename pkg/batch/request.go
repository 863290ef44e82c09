package batch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
)

// StreamManager accepts sub-operation registrations and sends the batch.
type StreamManager interface {
	AddChangeset() *Changeset
	AddRetrieve() *Retrieve
	AddOutsideUpdate() *OutsideUpdate

	// GetResponse sends the composed batch and blocks until the service answers.
	GetResponse(ctx context.Context) (*http.Response, error)
}

// Request describes a batch that has not been dispatched yet.
type Request struct {
	// ServiceRoot is the OData service root, e.g. "https://host/odata".
	ServiceRoot string

	// Header holds extra headers for the outer batch request.
	Header http.Header

	// RespondAsync asks the service to process the batch asynchronously.
	RespondAsync bool

	// ContinueOnError asks the service to keep going after a failed part.
	ContinueOnError bool

	// Version is the OData version sent with the batch (default 4.0).
	Version async.Version
}

// Validate checks the descriptor.
func (r Request) Validate() error {
	if r.ServiceRoot == "" {
		return fmt.Errorf("service root is required")
	}
	u, err := url.Parse(r.ServiceRoot)
	if err != nil {
		return fmt.Errorf("parse service root: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("service root must be absolute (got %q)", r.ServiceRoot)
	}
	if r.Version != "" && !r.Version.Valid() {
		return fmt.Errorf("unsupported OData version %q", r.Version)
	}
	return nil
}

// URL returns the $batch endpoint for the service root.
func (r Request) URL() string {
	return strings.TrimRight(r.ServiceRoot, "/") + "/$batch"
}

// Preferences returns the Prefer tokens for the batch request.
func (r Request) Preferences() []string {
	var prefs []string
	if r.RespondAsync {
		prefs = append(prefs, r.version().RespondAsync())
	}
	if r.ContinueOnError {
		prefs = append(prefs, r.version().ContinueOnError())
	}
	return prefs
}

func (r Request) version() async.Version {
	if r.Version == "" {
		return async.V40
	}
	return r.Version
}
