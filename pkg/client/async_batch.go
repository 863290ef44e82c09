package client

import (
	"context"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/Sternrassler/odata-batch-client/pkg/batch"
)

// Dispatcher opens a stream for an undispatched batch request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req batch.Request) (batch.StreamManager, error)
}

// State is the lifecycle state of an AsyncBatch.
type State int

const (
	// StateCreated means Start has not been called yet.
	StateCreated State = iota

	// StateComposing means parts may be added.
	StateComposing

	// StateExecuted means Execute was called but resolution failed.
	StateExecuted

	// StateResolved means Execute produced a Handle.
	StateResolved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateComposing:
		return "composing"
	case StateExecuted:
		return "executed"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// AsyncBatch composes a batch and resolves its response under the
// respond-async pattern. Use it from a single goroutine:
//
//	b := c.NewAsyncBatch(batch.Request{ServiceRoot: root, RespondAsync: true})
//	if err := b.Start(ctx); err != nil { ... }
//	cs, _ := b.AddChangeset()
//	_ = cs.AddRequest(post)
//	handle, err := b.Execute(ctx)
type AsyncBatch struct {
	dispatcher Dispatcher
	request    batch.Request
	resolver   *async.Resolver

	composer *batch.Composer
	handle   *async.Handle
	state    State
}

// NewAsyncBatch creates an async batch. It performs no I/O.
func NewAsyncBatch(d Dispatcher, req batch.Request, resolver *async.Resolver) *AsyncBatch {
	return &AsyncBatch{
		dispatcher: d,
		request:    req,
		resolver:   resolver,
		state:      StateCreated,
	}
}

// Start dispatches the request and opens the stream parts are added to.
func (b *AsyncBatch) Start(ctx context.Context) error {
	if b.state != StateCreated {
		return async.NewError(async.ErrInvalidState, "batch already started")
	}
	streams, err := b.dispatcher.Dispatch(ctx, b.request)
	if err != nil {
		return err
	}
	b.composer = batch.NewComposer(streams)
	b.state = StateComposing
	return nil
}

// AddChangeset adds a changeset to the batch.
func (b *AsyncBatch) AddChangeset() (*batch.Changeset, error) {
	if err := b.checkComposing(); err != nil {
		return nil, err
	}
	return b.composer.AddChangeset()
}

// AddRetrieve adds a single read to the batch.
func (b *AsyncBatch) AddRetrieve() (*batch.Retrieve, error) {
	if err := b.checkComposing(); err != nil {
		return nil, err
	}
	return b.composer.AddRetrieve()
}

// AddOutsideUpdate adds a request outside any changeset.
func (b *AsyncBatch) AddOutsideUpdate() (*batch.OutsideUpdate, error) {
	if err := b.checkComposing(); err != nil {
		return nil, err
	}
	return b.composer.AddOutsideUpdate()
}

// Execute sends the batch and resolves the response. It may be called once.
func (b *AsyncBatch) Execute(ctx context.Context) (*async.Handle, error) {
	if b.state != StateComposing {
		return nil, async.NewError(async.ErrInvalidState, "batch not in composing state ("+b.state.String()+")")
	}
	b.state = StateExecuted
	composer := b.composer
	b.composer = nil

	resp, err := composer.Dispatch(ctx)
	if err != nil {
		return nil, err
	}

	handle, err := b.resolver.Resolve(resp)
	if err != nil {
		return nil, err
	}
	b.handle = handle
	b.state = StateResolved
	return handle, nil
}

// Handle returns the resolved handle, if any.
func (b *AsyncBatch) Handle() (*async.Handle, bool) {
	return b.handle, b.handle != nil
}

// State returns the lifecycle state.
func (b *AsyncBatch) State() State {
	return b.state
}

func (b *AsyncBatch) checkComposing() error {
	switch b.state {
	case StateCreated:
		return async.NewError(async.ErrInvalidState, "batch not started")
	case StateComposing:
		return nil
	default:
		return async.NewError(async.ErrInvalidState, "cannot compose after execute")
	}
}
