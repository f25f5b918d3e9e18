package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultReceiveBufferSize     = 4 * 1024         // 4 KB, chunk size of the receive loop
	DefaultMaxFrameSize          = 64 * 1024 * 1024 // 64 MB
	DefaultMaxConcurrentHandlers = 64
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds the kernel socket buffer sizes (0 = OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig bundles all settings of the underlying stream socket
type TransportConfig struct {
	// Endpoint is the address to dial or to listen on (host:port or a unix socket path)
	Endpoint string
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Peer configuration struct
// --------------------------------------------------------------------------

// PeerConfig holds all configuration parameters of one side of a connection.
// The same struct is used by dialing and accepting peers.
type PeerConfig struct {
	Transport TransportConfig

	// TimeoutSecond bounds every call and every socket write (0 = no timeout)
	TimeoutSecond int

	// ReceiveBufferSize is the chunk size used by the receive loop (one buffer pool size class)
	ReceiveBufferSize int

	// MaxFrameSize is the largest accepted payload, larger frames close the connection
	MaxFrameSize int

	// MaxConcurrentHandlers bounds the inbound calls that run at the same time on one connection
	MaxConcurrentHandlers int

	// RateLimit is the number of inbound calls per second (0 = unlimited), RateBurst the bucket size
	RateLimit float64
	RateBurst int

	// Serializer is the name of the value serializer (json, gob)
	Serializer string

	// EnvelopeCodec is the name of the envelope codec (json, gob, binary)
	EnvelopeCodec string

	// SignSecret enables HMAC signing of the envelope data when not empty
	SignSecret string

	// EncryptSecret enables envelope encryption when not empty
	EncryptSecret string

	// Logging configuration
	LogLevel string
}

// DefaultPeerConfig returns a config with all defaults set
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		Transport: TransportConfig{
			TCPConf: TCPConf{TCPNoDelay: true},
		},
		ReceiveBufferSize:     DefaultReceiveBufferSize,
		MaxFrameSize:          DefaultMaxFrameSize,
		MaxConcurrentHandlers: DefaultMaxConcurrentHandlers,
		Serializer:            "json",
		EnvelopeCodec:         "json",
		LogLevel:              "info",
	}
}

// WithDefaults returns a copy of the config where every unset value is replaced by its default
func (c PeerConfig) WithDefaults() PeerConfig {
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.MaxConcurrentHandlers <= 0 {
		c.MaxConcurrentHandlers = DefaultMaxConcurrentHandlers
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
	if c.EnvelopeCodec == "" {
		c.EnvelopeCodec = "json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// String returns a formatted string representation of the configuration
func (c *PeerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	enabled := func(secret string) string {
		if secret == "" {
			return "disabled"
		}
		return "enabled"
	}

	// Transport settings
	addSection("Transport")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("TCP NoDelay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Socket Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Socket Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	// Connection settings
	addSection("Connection")
	addField("Receive Buffer", fmt.Sprintf("%d bytes", c.ReceiveBufferSize))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.MaxFrameSize))
	addField("Max Handlers", strconv.Itoa(c.MaxConcurrentHandlers))
	if c.RateLimit > 0 {
		addField("Rate Limit", fmt.Sprintf("%.1f/sec (burst %d)", c.RateLimit, c.RateBurst))
	} else {
		addField("Rate Limit", "unlimited")
	}

	// Payload settings
	addSection("Payload")
	addField("Serializer", c.Serializer)
	addField("Envelope Codec", c.EnvelopeCodec)
	addField("Signing", enabled(c.SignSecret))
	addField("Encryption", enabled(c.EncryptSecret))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
