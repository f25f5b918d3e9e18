package transport

import (
	"context"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/google/uuid"
	"net"
)

// --------------------------------------------------------------------------
// Outbound
// --------------------------------------------------------------------------

// IInvoker sends frames that start a call on the remote side
type IInvoker interface {
	// Call sends a request frame with the given body and blocks until the reply arrives,
	// the context ends or the connection closes. It returns the reply kind
	// (common.KindResponse or common.KindError) and the reply body.
	Call(ctx context.Context, body []byte) (common.FrameKind, []byte, error)
	// Notify sends a notify frame and returns as soon as it is written.
	// The remote side never answers a notify.
	Notify(ctx context.Context, body []byte) error
}

// --------------------------------------------------------------------------
// Inbound
// --------------------------------------------------------------------------

// IReplier answers inbound calls
type IReplier interface {
	// Reply sends a response frame with the id of the inbound call
	Reply(ctx context.Context, id uuid.UUID, body []byte) error
	// ReplyError sends an error frame with the id of the inbound call
	ReplyError(ctx context.Context, id uuid.UUID, body []byte) error
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// IConnection is one bidirectional stream between two peers.
// Both sides may call and answer over the same connection.
type IConnection interface {
	IInvoker
	IReplier
	// Close closes the connection and fails every pending call, calling it again is a no-op
	Close() error
	// Done is closed once the connection is fully closed
	Done() <-chan struct{}
	// Err returns the reason the connection closed (nil while open)
	Err() error
	// RemoteAddr returns the address of the remote peer
	RemoteAddr() net.Addr
}
