package base

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Pending Call (outbound)
// --------------------------------------------------------------------------

// PendingCall tracks one outbound call until its reply arrives.
// Completion is single-fire: the first Complete or Fail wins.
type PendingCall struct {
	id      uuid.UUID
	kind    common.FrameKind
	buf     bytes.Buffer
	started time.Time

	once   sync.Once
	done   chan struct{}
	result []byte
	err    error
}

// NewPendingCall creates a call record with a fresh random correlation id.
// Only calls that wait for a reply get a record, notifies are written without one.
func NewPendingCall() *PendingCall {
	return &PendingCall{
		id:      uuid.New(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the correlation id
func (c *PendingCall) ID() uuid.UUID {
	return c.id
}

// Write appends reply payload bytes, only the receive loop writes
func (c *PendingCall) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Complete resolves the call with the accumulated payload
func (c *PendingCall) Complete(kind common.FrameKind) {
	c.once.Do(func() {
		c.kind = kind
		c.result = c.buf.Bytes()
		close(c.done)
	})
}

// Fail resolves the call with an error
func (c *PendingCall) Fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done is closed once the call is resolved
func (c *PendingCall) Done() <-chan struct{} {
	return c.done
}

// Result returns the reply, only valid after Done is closed
func (c *PendingCall) Result() (common.FrameKind, []byte, error) {
	return c.kind, c.result, c.err
}

// Wait blocks until the call is resolved or the context ends
func (c *PendingCall) Wait(ctx context.Context) (common.FrameKind, []byte, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return common.KindUnknown, nil, ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Inbound Call
// --------------------------------------------------------------------------

// InboundCall is a request or notify frame received from the remote side.
// It is filled by the receive loop and handed to the inbound handler, nobody waits on it.
type InboundCall struct {
	id   uuid.UUID
	kind common.FrameKind
	buf  bytes.Buffer
}

// NewInboundCall creates a record for an inbound frame
func NewInboundCall(id uuid.UUID, kind common.FrameKind) *InboundCall {
	return &InboundCall{id: id, kind: kind}
}

func (c *InboundCall) ID() uuid.UUID {
	return c.id
}

func (c *InboundCall) Kind() common.FrameKind {
	return c.kind
}

// ExpectsReply reports whether the remote side waits for an answer
func (c *InboundCall) ExpectsReply() bool {
	return c.kind.ExpectsReply()
}

func (c *InboundCall) Payload() []byte {
	return c.buf.Bytes()
}

func (c *InboundCall) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps correlation ids to outbound calls waiting for a reply
type Registry struct {
	calls *xsync.MapOf[uuid.UUID, *PendingCall]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		calls: xsync.NewMapOf[uuid.UUID, *PendingCall](),
	}
}

// Register adds a call, a second call with the same id is rejected
func (r *Registry) Register(call *PendingCall) error {
	if _, loaded := r.calls.LoadOrStore(call.id, call); loaded {
		return fmt.Errorf("%w: %s", common.ErrDuplicateCall, call.id)
	}
	return nil
}

// Take removes and returns the call with the given id
func (r *Registry) Take(id uuid.UUID) (*PendingCall, bool) {
	return r.calls.LoadAndDelete(id)
}

// Remove drops the call with the given id without resolving it
func (r *Registry) Remove(id uuid.UUID) {
	r.calls.Delete(id)
}

// Len returns the number of pending calls
func (r *Registry) Len() int {
	return r.calls.Size()
}

// FailAll removes every pending call and fails it with err
func (r *Registry) FailAll(err error) int {
	n := 0
	r.calls.Range(func(id uuid.UUID, _ *PendingCall) bool {
		if call, ok := r.calls.LoadAndDelete(id); ok {
			call.Fail(err)
			n++
		}
		return true
	})
	return n
}
