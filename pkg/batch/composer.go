package batch

import (
	"context"
	"net/http"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
)

// Composer is a typed facade over a StreamManager. Add calls are forwarded
// unchanged until the batch is dispatched.
type Composer struct {
	streams    StreamManager
	dispatched bool
}

// NewComposer creates a composer over sm.
func NewComposer(sm StreamManager) *Composer {
	if sm == nil {
		panic("stream manager cannot be nil")
	}
	return &Composer{streams: sm}
}

// AddChangeset registers a changeset.
func (c *Composer) AddChangeset() (*Changeset, error) {
	if c.dispatched {
		return nil, errComposeAfterDispatch
	}
	return c.streams.AddChangeset(), nil
}

// AddRetrieve registers a single read.
func (c *Composer) AddRetrieve() (*Retrieve, error) {
	if c.dispatched {
		return nil, errComposeAfterDispatch
	}
	return c.streams.AddRetrieve(), nil
}

// AddOutsideUpdate registers a request outside any changeset.
func (c *Composer) AddOutsideUpdate() (*OutsideUpdate, error) {
	if c.dispatched {
		return nil, errComposeAfterDispatch
	}
	return c.streams.AddOutsideUpdate(), nil
}

// Dispatched reports whether Dispatch has been called.
func (c *Composer) Dispatched() bool {
	return c.dispatched
}

// Dispatch seals the composer and sends the batch. It may be called once;
// the composer stays sealed even when sending fails.
func (c *Composer) Dispatch(ctx context.Context) (*http.Response, error) {
	if c.dispatched {
		return nil, async.NewError(async.ErrInvalidState, "batch already dispatched")
	}
	c.dispatched = true
	return c.streams.GetResponse(ctx)
}

var errComposeAfterDispatch = async.NewError(async.ErrInvalidState, "cannot compose after dispatch")
