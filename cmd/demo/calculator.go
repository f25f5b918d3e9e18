package demo

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"
)

// Calculator is the demo service hosted by the serve command
type Calculator struct {
	calls atomic.Int64
}

// Add returns the sum of all arguments
func (c *Calculator) Add(args []float64) float64 {
	c.calls.Add(1)
	sum := 0.0
	for _, a := range args {
		sum += a
	}
	return sum
}

// Mul returns the product of all arguments
func (c *Calculator) Mul(args []float64) float64 {
	c.calls.Add(1)
	product := 1.0
	for _, a := range args {
		product *= a
	}
	return product
}

// Div divides the first argument by the second
func (c *Calculator) Div(args [2]float64) (float64, error) {
	c.calls.Add(1)
	if args[1] == 0 {
		return 0, errors.New("division by zero")
	}
	return args[0] / args[1], nil
}

// Echo returns its argument
func (c *Calculator) Echo(data []byte) []byte {
	c.calls.Add(1)
	return data
}

// Upper returns the argument in upper case
func (c *Calculator) Upper(s string) string {
	c.calls.Add(1)
	return strings.ToUpper(s)
}

// Sleep waits for the given number of milliseconds or until the call times out
func (c *Calculator) Sleep(ctx context.Context, ms int) error {
	c.calls.Add(1)
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping counts a call, it is used for notifies
func (c *Calculator) Ping() {
	c.calls.Add(1)
}

// Calls returns the number of calls served
func (c *Calculator) Calls() int64 {
	return c.calls.Load()
}

// CalculatorRemote is the shape of Calculator on the calling side
type CalculatorRemote struct {
	Add   func(ctx context.Context, args []float64) (float64, error)
	Mul   func(ctx context.Context, args []float64) (float64, error)
	Div   func(ctx context.Context, args [2]float64) (float64, error)
	Echo  func(ctx context.Context, data []byte) ([]byte, error)
	Upper func(ctx context.Context, s string) (string, error)
	Sleep func(ctx context.Context, ms int) (struct{}, error)
	Ping  func(ctx context.Context) error
	Calls func(ctx context.Context) (int64, error)
}
