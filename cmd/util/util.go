package util

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport/base"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRPC/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupPeerFlags adds the connection flags shared by all commands to a command
func SetupPeerFlags(cmd *cobra.Command, defaultEndpoint string) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, defaultEndpoint, WrapString("The address to connect to or to listen on (e.g. localhost:8080, /tmp/drpc.sock)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds for calls and socket writes (0 = none)"))

	key = "envelope-codec"
	cmd.PersistentFlags().String(key, "json", WrapString("The codec of the message envelope (json, gob, binary)"))

	key = "sign-secret"
	cmd.PersistentFlags().String(key, "", WrapString("Sign every message with HMAC-SHA256 using this secret (both sides need the same secret)"))

	key = "encrypt-secret"
	cmd.PersistentFlags().String(key, "", WrapString("Encrypt every message with XChaCha20-Poly1305 using this secret (both sides need the same secret)"))

	key = "receive-buffer"
	cmd.PersistentFlags().Int(key, common.DefaultReceiveBufferSize/1024, WrapString("The chunk size of the receive loop (in KB)"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxFrameSize/(1024*1024), WrapString("The largest accepted frame payload (in MB)"))

	key = "max-handlers"
	cmd.PersistentFlags().Int(key, common.DefaultMaxConcurrentHandlers, WrapString("How many inbound calls run at the same time per connection"))

	key = "rate-limit"
	cmd.PersistentFlags().Float64(key, 0, WrapString("Accepted inbound calls per second and connection (0 = unlimited)"))

	key = "rate-burst"
	cmd.PersistentFlags().Int(key, 10, WrapString("Burst size of the inbound rate limiter"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("The level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and maps environment variables (DRPC_<FLAG>) to flags
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("drpc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetPeerConfig reads the peer configuration from viper
func GetPeerConfig() common.PeerConfig {
	conf := common.PeerConfig{
		Transport: common.TransportConfig{
			Endpoint: viper.GetString("endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			},
		},
		TimeoutSecond:         viper.GetInt("timeout"),
		ReceiveBufferSize:     viper.GetInt("receive-buffer") * 1024,
		MaxFrameSize:          viper.GetInt("max-frame-size") * 1024 * 1024,
		MaxConcurrentHandlers: viper.GetInt("max-handlers"),
		RateLimit:             viper.GetFloat64("rate-limit"),
		RateBurst:             viper.GetInt("rate-burst"),
		Serializer:            viper.GetString("serializer"),
		EnvelopeCodec:         viper.GetString("envelope-codec"),
		SignSecret:            viper.GetString("sign-secret"),
		EncryptSecret:         viper.GetString("encrypt-secret"),
		LogLevel:              viper.GetString("log-level"),
	}

	return conf.WithDefaults()
}

// GetClientConnector creates the dialing connector of the configured transport
func GetClientConnector() (base.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewClientConnector(), nil
	case "unix":
		return unix.NewClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerConnector creates the listening connector of the configured transport
func GetServerConnector() (base.IServerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewServerConnector(), nil
	case "unix":
		return unix.NewServerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper and initializes the loggers
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := validateLogLevel(viper.GetString("log-level")); err != nil {
		return err
	}
	common.InitLoggers(viper.GetString("log-level"))
	return nil
}

// validateLogLevel turns the panic of common.ParseLogLevel into an error
func validateLogLevel(level string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	common.ParseLogLevel(level)
	return nil
}
