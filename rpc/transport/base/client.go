package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"math/rand"
	"net"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Dialing
// -----------------------------------------------------------

// DialOptions controls the retry behaviour of Dial
type DialOptions struct {
	// RetryCount is the number of connection attempts (minimum 1)
	RetryCount int
	// InitialBackoff is the wait time after the first failed attempt, it doubles after each attempt
	InitialBackoff time.Duration
}

// DefaultDialOptions tries three times starting with a 50ms backoff
var DefaultDialOptions = DialOptions{
	RetryCount:     3,
	InitialBackoff: 50 * time.Millisecond,
}

// Dial connects to the configured endpoint and upgrades the socket.
// Failed attempts are retried with exponential backoff and jitter.
func Dial(ctx context.Context, connector IClientConnector, config common.TransportConfig, opts DialOptions) (net.Conn, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}

	maxRetries := opts.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}
	backoff := opts.InitialBackoff

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := dialOnce(ctx, connector, config)
		if err == nil {
			Logger.Infof("Connected to %s using %s transport", config.Endpoint, connector.GetName())
			return conn, nil
		}

		lastErr = err
		Logger.Debugf("Connection attempt %d/%d to %s failed: %v", i+1, maxRetries, config.Endpoint, err)

		if i < maxRetries-1 && backoff > 0 {
			// exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoff) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter)):
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to connect to %s: %w", config.Endpoint, ctx.Err())
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", config.Endpoint, maxRetries, lastErr)
}

// dialOnce makes a single connection attempt
func dialOnce(ctx context.Context, connector IClientConnector, config common.TransportConfig) (net.Conn, error) {
	conn, err := connector.Connect(ctx, config.Endpoint)
	if err != nil {
		return nil, err
	}

	if err := connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %v", config.Endpoint, err)
	}
	return conn, nil
}
