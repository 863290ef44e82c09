package batch

import (
	"fmt"
	"net/http"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
)

// Kind identifies a sub-operation variant.
type Kind int

const (
	// KindChangeset is an atomic group of mutating requests.
	KindChangeset Kind = iota + 1

	// KindRetrieve is a single read.
	KindRetrieve

	// KindOutsideUpdate is a single request sent outside any changeset.
	KindOutsideUpdate
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindChangeset:
		return "changeset"
	case KindRetrieve:
		return "retrieve"
	case KindOutsideUpdate:
		return "outside_update"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SubOperation is one part of a batch. The set of implementations is
// closed: *Changeset, *Retrieve and *OutsideUpdate.
type SubOperation interface {
	Kind() Kind

	// Requests returns the requests carried by the part, in order.
	Requests() []*http.Request

	freeze()
}

// Changeset groups mutating requests that the service applies atomically.
type Changeset struct {
	requests []*http.Request
	frozen   bool
}

// NewChangeset creates an empty changeset builder.
func NewChangeset() *Changeset {
	return &Changeset{}
}

// Kind implements SubOperation.
func (c *Changeset) Kind() Kind { return KindChangeset }

// Requests implements SubOperation.
func (c *Changeset) Requests() []*http.Request { return c.requests }

// Len returns the number of requests in the changeset.
func (c *Changeset) Len() int { return len(c.requests) }

// AddRequest appends a mutating request to the changeset.
func (c *Changeset) AddRequest(req *http.Request) error {
	if c.frozen {
		return async.NewError(async.ErrInvalidState, "changeset already dispatched")
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return fmt.Errorf("changeset requests must be mutating (got %s)", req.Method)
	}
	c.requests = append(c.requests, req)
	return nil
}

func (c *Changeset) freeze() { c.frozen = true }

// Retrieve is a single read request.
type Retrieve struct {
	request *http.Request
	frozen  bool
}

// NewRetrieve creates an empty retrieve builder.
func NewRetrieve() *Retrieve {
	return &Retrieve{}
}

// Kind implements SubOperation.
func (r *Retrieve) Kind() Kind { return KindRetrieve }

// Requests implements SubOperation.
func (r *Retrieve) Requests() []*http.Request { return single(r.request) }

// SetRequest sets the read request. Only GET is allowed.
func (r *Retrieve) SetRequest(req *http.Request) error {
	if r.frozen {
		return async.NewError(async.ErrInvalidState, "retrieve already dispatched")
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if req.Method != http.MethodGet {
		return fmt.Errorf("retrieve requests must be GET (got %s)", req.Method)
	}
	r.request = req
	return nil
}

func (r *Retrieve) freeze() { r.frozen = true }

// OutsideUpdate is a single request sent outside any changeset.
type OutsideUpdate struct {
	request *http.Request
	frozen  bool
}

// NewOutsideUpdate creates an empty outside-update builder.
func NewOutsideUpdate() *OutsideUpdate {
	return &OutsideUpdate{}
}

// Kind implements SubOperation.
func (o *OutsideUpdate) Kind() Kind { return KindOutsideUpdate }

// Requests implements SubOperation.
func (o *OutsideUpdate) Requests() []*http.Request { return single(o.request) }

// SetRequest sets the request.
func (o *OutsideUpdate) SetRequest(req *http.Request) error {
	if o.frozen {
		return async.NewError(async.ErrInvalidState, "outside update already dispatched")
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	o.request = req
	return nil
}

func (o *OutsideUpdate) freeze() { o.frozen = true }

func single(req *http.Request) []*http.Request {
	if req == nil {
		return nil
	}
	return []*http.Request{req}
}
