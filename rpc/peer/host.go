package peer

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport/base"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
)

// HandlerFactory returns the handler of a newly accepted peer (see New)
type HandlerFactory func(conn net.Conn) any

// Host accepts connections and creates a peer for each of them
type Host struct {
	acceptor  *base.Acceptor
	config    common.PeerConfig
	factory   HandlerFactory
	opts      []Option
	pool      *base.BufferPool
	peers     *xsync.MapOf[*Peer, struct{}]
	onConnect func(p *Peer)

	// mu orders peer creation against Close, no peer is created once closed is set
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewHost creates a host listening on config.Transport.Endpoint.
// All peers of a host share one buffer pool.
func NewHost(connector base.IServerConnector, config common.PeerConfig, factory HandlerFactory, opts ...Option) *Host {
	config = config.WithDefaults()
	pool := base.NewBufferPool(config.ReceiveBufferSize)

	return &Host{
		acceptor: base.NewAcceptor(connector, config.Transport),
		config:   config,
		factory:  factory,
		opts:     append([]Option{WithBufferPool(pool)}, opts...),
		pool:     pool,
		peers:    xsync.NewMapOf[*Peer, struct{}](),
	}
}

// OnConnect sets a callback run for every new peer, e.g. to bind the remote side.
// It must be set before Serve.
func (h *Host) OnConnect(fn func(p *Peer)) {
	h.onConnect = fn
}

// Listen opens the listening socket, Serve calls it when needed
func (h *Host) Listen() error {
	return h.acceptor.Listen()
}

// Addr returns the listening address
func (h *Host) Addr() net.Addr {
	return h.acceptor.Addr()
}

// Serve accepts peers until the context ends or the host is closed
func (h *Host) Serve(ctx context.Context) error {
	return h.acceptor.Serve(ctx, h.accept)
}

// Peers returns all connected peers
func (h *Host) Peers() []*Peer {
	peers := make([]*Peer, 0, h.peers.Size())
	h.peers.Range(func(p *Peer, _ struct{}) bool {
		peers = append(peers, p)
		return true
	})
	return peers
}

// Close stops accepting and closes every peer
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()

		err = h.acceptor.Close()
		for _, p := range h.Peers() {
			p.Close()
		}
		h.pool.Close()
	})
	return err
}

// accept creates the peer of an accepted connection
func (h *Host) accept(conn net.Conn) {
	var handler any
	if h.factory != nil {
		handler = h.factory(conn)
	}

	p, err := h.newPeer(conn, handler)
	if err != nil {
		Logger.Errorf("Failed to create peer for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	Logger.Infof("Peer %s connected", conn.RemoteAddr())

	if h.onConnect != nil {
		h.onConnect(p)
	}

	<-p.Done()
	h.peers.Delete(p)
	Logger.Infof("Peer %s disconnected", conn.RemoteAddr())
}

// newPeer creates and tracks the peer of a connection unless the host is closed.
// Creation and Close are serialised, so Close sees every peer it has to close
// before it closes the shared buffer pool.
func (h *Host) newPeer(conn net.Conn, handler any) (*Peer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("host closed: %w", common.ErrConnectionClosed)
	}
	p, err := New(conn, h.config, handler, h.opts...)
	if err != nil {
		return nil, err
	}
	h.peers.Store(p, struct{}{})
	return p, nil
}
