package common

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed is returned to every caller whose call was still pending when the connection closed
	ErrConnectionClosed = errors.New("connection closed")
	// ErrFrameTooShort is a framing error: the declared size is smaller than the correlation id
	ErrFrameTooShort = errors.New("frame too short")
	// ErrFrameTooLarge is a framing error: the declared payload exceeds the configured maximum
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnknownKind is a framing error: the payload does not start with a known frame kind
	ErrUnknownKind = errors.New("unknown frame kind")
	// ErrDuplicateCall is returned when a correlation id is registered twice
	ErrDuplicateCall = errors.New("duplicate correlation id")
	// ErrMethodNotFound is returned when an inbound call names a method that is not registered
	ErrMethodNotFound = errors.New("method not found")
	// ErrTooManyParams is returned when a method declares more than one parameter
	ErrTooManyParams = errors.New("methods support at most one parameter")
	// ErrArgumentCount is returned when a call carries an argument the method does not take or lacks one it needs
	ErrArgumentCount = errors.New("argument count mismatch")
	// ErrInvalidSignature is returned when a method or remote shape has an unsupported signature
	ErrInvalidSignature = errors.New("invalid method signature")
	// ErrIntegrity is returned when a message fails signature verification or decryption
	ErrIntegrity = errors.New("message integrity check failed")
	// ErrRateLimited is returned when an inbound call is rejected by the rate limiter
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrOverloaded is returned when an inbound call finds every handler slot and queue place taken
	ErrOverloaded = errors.New("too many inbound calls")
	// ErrPoolClosed is the panic value when a closed buffer pool is used
	ErrPoolClosed = errors.New("buffer pool closed")
)

// RemoteError is returned to a caller when the remote side answered with an error frame
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("remote error in %s: %s", e.Method, e.Message)
}
