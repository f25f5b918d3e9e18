package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	framesSent     = metrics.NewCounter("drpc_frames_sent_total")
	framesReceived = metrics.NewCounter("drpc_frames_received_total")
	bytesSent      = metrics.NewCounter("drpc_bytes_sent_total")
	bytesReceived  = metrics.NewCounter("drpc_bytes_received_total")
	callsFailed    = metrics.NewCounter("drpc_calls_failed_total")
	unknownReplies = metrics.NewCounter("drpc_unknown_replies_total")
	callDuration   = metrics.NewHistogram("drpc_call_duration_seconds")
)

// --------------------------------------------------------------------------
// Interface Definitions for dependency injection
// --------------------------------------------------------------------------

// InboundHandler receives every request and notify frame of a connection.
// HandleInbound is called from the receive loop, long running work must not block it.
type InboundHandler interface {
	HandleInbound(r transport.IReplier, call *InboundCall)
}

// InboundHandlerFunc adapts a function to the InboundHandler interface
type InboundHandlerFunc func(r transport.IReplier, call *InboundCall)

func (f InboundHandlerFunc) HandleInbound(r transport.IReplier, call *InboundCall) {
	f(r, call)
}

type handlerConnKey struct{}

// WithinHandler marks ctx as the context of a handler answering a call that
// arrived on r. Calls made with such a context over the same connection are
// sent as callbacks, so the remote side runs them even when all of its
// handler slots are taken by calls waiting for this one.
func WithinHandler(ctx context.Context, r transport.IReplier) context.Context {
	return context.WithValue(ctx, handlerConnKey{}, r)
}

// callKind returns the kind of an outbound call made with ctx on c
func (c *Connection) callKind(ctx context.Context) common.FrameKind {
	if r, ok := ctx.Value(handlerConnKey{}).(*Connection); ok && r == c {
		return common.KindCallback
	}
	return common.KindRequest
}

// --------------------------------------------------------------------------
// Connection State
// --------------------------------------------------------------------------

// ConnState is the lifecycle state of a connection
type ConnState int32

const (
	StateCreated ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Connection Config
// --------------------------------------------------------------------------

// ConnectionConfig holds the settings of one connection
type ConnectionConfig struct {
	// TimeoutSecond bounds socket writes and calls without a context deadline (0 = none)
	TimeoutSecond int
	// ReceiveBufferSize is the chunk size of the receive loop
	ReceiveBufferSize int
	// MaxFrameSize is the largest accepted payload
	MaxFrameSize int
	// Pool is the buffer pool of the receive loop, nil creates a pool owned by the connection
	Pool *BufferPool
}

// ConnectionConfigFrom extracts the connection settings of a peer config
func ConnectionConfigFrom(config common.PeerConfig) ConnectionConfig {
	config = config.WithDefaults()
	return ConnectionConfig{
		TimeoutSecond:     config.TimeoutSecond,
		ReceiveBufferSize: config.ReceiveBufferSize,
		MaxFrameSize:      config.MaxFrameSize,
	}
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection owns one stream socket. A single receive loop reads frames and
// either resolves the matching pending call or hands the frame to the
// inbound handler. Any number of goroutines may send concurrently.
type Connection struct {
	conn     net.Conn
	config   ConnectionConfig
	handler  InboundHandler
	log      logger.ILogger
	registry *Registry
	pool     *BufferPool
	ownPool  bool

	state   atomic.Int32
	writeMu sync.Mutex

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	closing   chan struct{}
	loopDone  chan struct{}
	done      chan struct{}
}

// NewConnection wraps a connected socket. The receive loop starts with Start.
func NewConnection(conn net.Conn, config ConnectionConfig, handler InboundHandler) *Connection {
	if config.ReceiveBufferSize <= 0 {
		config.ReceiveBufferSize = common.DefaultReceiveBufferSize
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = common.DefaultMaxFrameSize
	}

	c := &Connection{
		conn:     conn,
		config:   config,
		handler:  handler,
		log:      common.WithPrefix(Logger, remoteName(conn)),
		registry: NewRegistry(),
		pool:     config.Pool,
		closing:  make(chan struct{}),
		loopDone: make(chan struct{}),
		done:     make(chan struct{}),
	}
	if c.pool == nil {
		c.pool = NewBufferPool(config.ReceiveBufferSize)
		c.ownPool = true
	}
	return c
}

// Start opens the connection and runs the receive loop in its own goroutine.
// Starting twice or after Close does nothing.
func (c *Connection) Start() {
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateOpen)) {
		return
	}
	c.log.Debugf("Connection open")
	go c.readLoop()
}

// State returns the current lifecycle state
func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

// PendingCalls returns the number of outbound calls waiting for a reply
func (c *Connection) PendingCalls() int {
	return c.registry.Len()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnection)
// --------------------------------------------------------------------------

func (c *Connection) Call(ctx context.Context, body []byte) (common.FrameKind, []byte, error) {
	if c.config.TimeoutSecond > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.TimeoutSecond)*time.Second)
			defer cancel()
		}
	}

	call := NewPendingCall()
	if err := c.registry.Register(call); err != nil {
		return common.KindUnknown, nil, err
	}

	// the call must be visible to FailAll or see the closing state, never neither
	if c.State() != StateOpen {
		c.registry.Remove(call.ID())
		return common.KindUnknown, nil, c.closedError()
	}

	if err := c.send(ctx, c.callKind(ctx), call.ID(), body); err != nil {
		c.registry.Remove(call.ID())
		callsFailed.Inc()
		return common.KindUnknown, nil, err
	}

	select {
	case <-call.Done():
	case <-ctx.Done():
		c.registry.Remove(call.ID())
		callsFailed.Inc()
		return common.KindUnknown, nil, fmt.Errorf("call %s aborted: %w", call.ID(), ctx.Err())
	case <-c.closing:
		// do not wait for the receive loop, it may be blocked by a handler making this call
		c.registry.Remove(call.ID())
		callsFailed.Inc()
		return common.KindUnknown, nil, c.closedError()
	}

	kind, resp, err := call.Result()
	if err != nil {
		callsFailed.Inc()
		return common.KindUnknown, nil, err
	}

	callDuration.Update(time.Since(call.started).Seconds())
	return kind, resp, nil
}

func (c *Connection) Notify(ctx context.Context, body []byte) error {
	return c.send(ctx, common.KindNotify, uuid.New(), body)
}

func (c *Connection) Reply(ctx context.Context, id uuid.UUID, body []byte) error {
	return c.send(ctx, common.KindResponse, id, body)
}

func (c *Connection) ReplyError(ctx context.Context, id uuid.UUID, body []byte) error {
	return c.send(ctx, common.KindError, id, body)
}

func (c *Connection) Close() error {
	c.shutdown(common.ErrConnectionClosed)
	<-c.done
	return nil
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send writes one frame while holding the write lock
func (c *Connection) send(ctx context.Context, kind common.FrameKind, id uuid.UUID, body []byte) error {
	if c.State() != StateOpen {
		return c.closedError()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(body)+1 > c.config.MaxFrameSize {
		return fmt.Errorf("%w: %d > %d bytes", common.ErrFrameTooLarge, len(body)+1, c.config.MaxFrameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if c.config.TimeoutSecond > 0 {
		deadline = time.Now().Add(time.Duration(c.config.TimeoutSecond) * time.Second)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	// a zero deadline clears the one of a previous write
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %v", err)
	}

	n, err := WriteFrame(c.conn, id, kind, body)
	if err != nil {
		// a partial frame may be on the wire, the stream can not be used anymore
		err = fmt.Errorf("failed to write %s frame: %w", kind, err)
		c.log.Errorf("Closing connection: %v", err)
		go c.shutdown(err)
		return err
	}

	framesSent.Inc()
	bytesSent.Add(int(n))
	return nil
}

// readLoop reads frames until the socket fails or the connection is closed
func (c *Connection) readLoop() {
	var cause error
	defer func() {
		close(c.loopDone)
		c.shutdown(cause)
	}()

	header := make([]byte, HeaderSize)
	for {
		if err := c.readFrame(header); err != nil {
			if c.State() != StateOpen {
				// closed locally, the read error is only the consequence
				return
			}
			if errors.Is(err, io.EOF) {
				c.log.Infof("Connection closed by remote")
				cause = fmt.Errorf("%w: closed by remote", common.ErrConnectionClosed)
			} else {
				c.log.Errorf("Read error: %v", err)
				cause = err
			}
			return
		}
	}
}

// readFrame reads one frame and routes it
func (c *Connection) readFrame(header []byte) error {
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return err
	}

	totalSize, id, err := DecodeHeader(header)
	if err != nil {
		return err
	}

	size := PayloadSize(totalSize)
	if size > c.config.MaxFrameSize {
		return fmt.Errorf("%w: %d > %d bytes", common.ErrFrameTooLarge, size, c.config.MaxFrameSize)
	}

	framesReceived.Inc()
	bytesReceived.Add(HeaderSize + size)

	if size == 0 {
		c.log.Debugf("Ignoring empty frame %s", id)
		return nil
	}

	var kindByte [1]byte
	if _, err := io.ReadFull(c.conn, kindByte[:]); err != nil {
		return unexpected(err)
	}
	kind := common.FrameKind(kindByte[0])

	var (
		sink    io.Writer
		call    *PendingCall
		inbound *InboundCall
	)
	switch {
	case kind.IsReply():
		var ok bool
		if call, ok = c.registry.Take(id); ok {
			sink = call
		} else {
			sink = io.Discard
		}
	case kind.IsCall():
		inbound = NewInboundCall(id, kind)
		sink = inbound
	default:
		return fmt.Errorf("%w: %d", common.ErrUnknownKind, kindByte[0])
	}

	if err := c.readPayload(sink, size-1); err != nil {
		if call != nil {
			call.Fail(fmt.Errorf("%w: %v", common.ErrConnectionClosed, err))
		}
		return err
	}

	switch {
	case call != nil:
		call.Complete(kind)
	case inbound != nil:
		c.dispatch(inbound)
	default:
		unknownReplies.Inc()
		c.log.Warningf("Discarded %s frame for unknown call %s", kind, id)
	}
	return nil
}

// readPayload copies n payload bytes from the socket into sink in pool buffer sized chunks
func (c *Connection) readPayload(sink io.Writer, n int) error {
	if n == 0 {
		return nil
	}

	buf := c.pool.Rent(c.config.ReceiveBufferSize)
	defer buf.Release()
	chunk := buf.Bytes()

	for n > 0 {
		part := chunk
		if n < len(part) {
			part = part[:n]
		}
		read, err := io.ReadFull(c.conn, part)
		if read > 0 {
			if _, werr := sink.Write(part[:read]); werr != nil {
				return werr
			}
		}
		if err != nil {
			return unexpected(err)
		}
		n -= read
	}
	return nil
}

// dispatch hands an inbound call to the handler
func (c *Connection) dispatch(call *InboundCall) {
	if c.handler != nil {
		c.handler.HandleInbound(c, call)
		return
	}

	c.log.Warningf("No handler for inbound %s %s", call.Kind(), call.ID())
	if call.ExpectsReply() {
		if err := c.ReplyError(context.Background(), call.ID(), nil); err != nil {
			c.log.Errorf("Failed to reply to %s: %v", call.ID(), err)
		}
	}
}

// shutdown closes the socket once and fails every pending call after the loop exited
func (c *Connection) shutdown(cause error) {
	c.closeOnce.Do(func() {
		if cause == nil {
			cause = common.ErrConnectionClosed
		}
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()
		close(c.closing)

		if c.state.CompareAndSwap(int32(StateCreated), int32(StateClosing)) {
			// the receive loop was never started
			close(c.loopDone)
		} else {
			c.state.Store(int32(StateClosing))
		}

		if err := c.conn.Close(); err != nil {
			c.log.Debugf("Error closing socket: %v", err)
		}

		go func() {
			<-c.loopDone
			if n := c.registry.FailAll(c.closedError()); n > 0 {
				c.log.Infof("Failed %d pending calls on closed connection", n)
			}
			if c.ownPool {
				c.pool.Close()
			}
			c.state.Store(int32(StateClosed))
			close(c.done)
		}()
	})
}

// closedError returns the error handed to callers of a closed connection
func (c *Connection) closedError() error {
	err := c.Err()
	if err == nil || errors.Is(err, common.ErrConnectionClosed) {
		if err == nil {
			return common.ErrConnectionClosed
		}
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrConnectionClosed, err)
}

// remoteName names the remote side of a socket in log messages
func remoteName(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// unexpected turns an EOF inside a frame into io.ErrUnexpectedEOF
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
