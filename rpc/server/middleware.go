package server

import (
	"context"
	"time"
)

// LoggingMiddleware logs the duration and the error of every call at debug level
func LoggingMiddleware(method string, next HandleFunc) HandleFunc {
	return func(ctx context.Context, arg []byte) ([]byte, error) {
		start := time.Now()
		resp, err := next(ctx, arg)
		if err != nil {
			Logger.Debugf("%s failed after %s: %v", method, time.Since(start), err)
		} else {
			Logger.Debugf("%s took %s", method, time.Since(start))
		}
		return resp, err
	}
}
