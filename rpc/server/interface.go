package server

import (
	"context"
)

// HandleFunc handles one inbound call. It receives the serialized argument
// (empty if the caller passed none) and returns the serialized result.
type HandleFunc func(ctx context.Context, arg []byte) ([]byte, error)

// Middleware wraps a HandleFunc, the method name is passed for logging and metrics
type Middleware func(method string, next HandleFunc) HandleFunc
