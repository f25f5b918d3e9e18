package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"net"
	"sync"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.TransportConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Acceptor
// -----------------------------------------------------------

// AcceptFunc is called in its own goroutine for every accepted and upgraded connection
type AcceptFunc func(conn net.Conn)

// Acceptor runs the accept loop of a listening socket
type Acceptor struct {
	connector IServerConnector
	config    common.TransportConfig

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewAcceptor creates an acceptor, the socket is opened by Listen
func NewAcceptor(connector IServerConnector, config common.TransportConfig) *Acceptor {
	return &Acceptor{
		connector: connector,
		config:    config,
	}
}

// Listen opens the listening socket
func (a *Acceptor) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return common.ErrConnectionClosed
	}
	if a.listener != nil {
		return nil
	}

	listener, err := a.connector.Listen(a.config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	a.listener = listener

	Logger.Infof("Listening on %s (%s)", listener.Addr(), a.connector.GetName())
	return nil
}

// Addr returns the listening address (nil before Listen)
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Serve accepts connections until the context ends or Close is called.
// Temporary accept errors are retried with a growing delay.
func (a *Acceptor) Serve(ctx context.Context, onAccept AcceptFunc) error {
	if err := a.Listen(); err != nil {
		return err
	}

	a.mu.Lock()
	listener := a.listener
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { a.Close() })
	defer stop()

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if a.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else if delay *= 2; delay > time.Second {
					delay = time.Second
				}
				Logger.Warningf("Accept error: %v; retrying in %v", err, delay)
				time.Sleep(delay)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		delay = 0

		if err := a.connector.UpgradeConnection(conn, a.config); err != nil {
			Logger.Errorf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		go onAccept(conn)
	}
}

// Close closes the listening socket, Serve returns
func (a *Acceptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.listener == nil {
		return nil
	}
	return a.listener.Close()
}

func (a *Acceptor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
