package peer

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/ValentinKolb/dRPC/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"sync"
)

var Logger = logger.GetLogger("peer")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// RegisterFunc registers methods on the dispatcher of a new peer.
// It can be passed as handler instead of a service object.
type RegisterFunc func(d *server.Dispatcher) error

type options struct {
	pool        *base.BufferPool
	middlewares []server.Middleware
	dial        base.DialOptions
}

// Option configures a peer
type Option func(*options)

// WithBufferPool shares a buffer pool between several peers
func WithBufferPool(pool *base.BufferPool) Option {
	return func(o *options) { o.pool = pool }
}

// WithMiddleware wraps every method of the peer's handler
func WithMiddleware(m ...server.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, m...) }
}

// WithDialOptions sets the retry behaviour of Dial
func WithDialOptions(d base.DialOptions) Option {
	return func(o *options) { o.dial = d }
}

// --------------------------------------------------------------------------
// Peer
// --------------------------------------------------------------------------

// Peer is one side of a connection: the connection itself, the local
// handler answering the remote side and the client calling it.
// Both peers of a connection are equal, either may call the other.
type Peer struct {
	conn       *base.Connection
	dispatcher *server.Dispatcher
	client     *client.Client
	config     common.PeerConfig
	closeOnce  sync.Once
}

// New creates a peer on a connected socket and starts its receive loop.
//
// handler is either nil (the peer only calls), a RegisterFunc or a service
// object whose exported methods are registered by reflection.
func New(conn net.Conn, config common.PeerConfig, handler any, opts ...Option) (*Peer, error) {
	config = config.WithDefaults()
	o := options{dial: base.DefaultDialOptions}
	for _, opt := range opts {
		opt(&o)
	}

	dispatcherConfig, err := server.DispatcherConfigFrom(config)
	if err != nil {
		return nil, fmt.Errorf("invalid peer config: %w", err)
	}
	dispatcherConfig.Middlewares = o.middlewares
	d := server.NewDispatcher(dispatcherConfig)

	switch h := handler.(type) {
	case nil:
	case RegisterFunc:
		err = h(d)
	case func(d *server.Dispatcher) error:
		err = h(d)
	default:
		err = d.RegisterService(handler)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register handler: %w", err)
	}

	connConfig := base.ConnectionConfigFrom(config)
	connConfig.Pool = o.pool
	c := base.NewConnection(conn, connConfig, d)

	p := &Peer{
		conn:       c,
		dispatcher: d,
		client:     client.NewClient(c, dispatcherConfig.Serializer, dispatcherConfig.Pipeline),
		config:     config,
	}

	c.Start()
	go func() {
		// stop the handlers when the remote side goes away
		<-c.Done()
		p.Close()
	}()

	Logger.Debugf("Peer %s ready with methods %v", conn.RemoteAddr(), d.Methods())
	return p, nil
}

// Dial connects to the endpoint of config.Transport and creates a peer on the connection
func Dial(ctx context.Context, connector base.IClientConnector, config common.PeerConfig, handler any, opts ...Option) (*Peer, error) {
	o := options{dial: base.DefaultDialOptions}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := base.Dial(ctx, connector, config.Transport, o.dial)
	if err != nil {
		return nil, err
	}

	p, err := New(conn, config, handler, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// Bind fills a struct of func fields with stubs calling the remote side (see client.Bind)
func (p *Peer) Bind(remote any) error {
	return client.Bind(p.client, remote)
}

// Client returns the client calling the remote side
func (p *Peer) Client() *client.Client {
	return p.client
}

// Dispatcher returns the method table answering the remote side
func (p *Peer) Dispatcher() *server.Dispatcher {
	return p.dispatcher
}

// Notify invokes a remote method without waiting for it
func (p *Peer) Notify(ctx context.Context, method string, arg any) error {
	return client.Notify(ctx, p.client, method, arg)
}

// Close closes the connection, fails all pending calls and waits for running handlers.
// It must not be called from a handler of the same peer.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.dispatcher.Stop()
		p.conn.Close()
		p.dispatcher.Close()
		Logger.Debugf("Peer %s closed: %v", p.conn.RemoteAddr(), p.conn.Err())
	})
	return nil
}

// Done is closed once the connection is closed
func (p *Peer) Done() <-chan struct{} {
	return p.conn.Done()
}

// Err returns the reason the connection closed
func (p *Peer) Err() error {
	return p.conn.Err()
}

// RemoteAddr returns the address of the remote peer
func (p *Peer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// Config returns the effective configuration of the peer
func (p *Peer) Config() common.PeerConfig {
	return p.config
}

// Call invokes a remote method on the peer and decodes the result into R
func Call[R any](ctx context.Context, p *Peer, method string, arg any) (R, error) {
	return client.Call[R](ctx, p.client, method, arg)
}
