package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/security"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// Client is the outbound side of the RPC layer. It turns method calls into
// envelopes and sends them over an invoker (usually a base.Connection).
type Client struct {
	invoker    transport.IInvoker
	serializer serializer.IRPCSerializer
	pipeline   *security.Pipeline
}

// NewClient creates a client for the given invoker
func NewClient(invoker transport.IInvoker, serializer serializer.IRPCSerializer, pipeline *security.Pipeline) *Client {
	return &Client{
		invoker:    invoker,
		serializer: serializer,
		pipeline:   pipeline,
	}
}

// NewClientFromConfig creates a client with the serializer and the pipeline described by the config
func NewClientFromConfig(invoker transport.IInvoker, config common.PeerConfig) (*Client, error) {
	config = config.WithDefaults()

	s, err := serializer.New(config.Serializer)
	if err != nil {
		return nil, err
	}
	pipeline, err := security.NewPipelineFromConfig(config)
	if err != nil {
		return nil, err
	}
	return NewClient(invoker, s, pipeline), nil
}

// --------------------------------------------------------------------------
// Typed Calls
// --------------------------------------------------------------------------

// Call invokes a remote method and decodes the result into R.
// A nil arg calls the method without an argument.
func Call[R any](ctx context.Context, c *Client, method string, arg any) (R, error) {
	var result R

	data, err := c.call(ctx, method, arg)
	if err != nil {
		return result, err
	}
	if len(data) == 0 {
		return result, nil
	}
	if err := c.serializer.Deserialize(data, &result); err != nil {
		return result, fmt.Errorf("failed to deserialize result of %s: %v", method, err)
	}
	return result, nil
}

// Notify invokes a remote method without waiting for it. The result and any
// remote error are discarded, only local and write errors are returned.
func Notify(ctx context.Context, c *Client, method string, arg any) error {
	data, err := c.encodeArg(arg)
	if err != nil {
		return err
	}
	return c.NotifyRaw(ctx, method, data)
}

// --------------------------------------------------------------------------
// Raw Calls
// --------------------------------------------------------------------------

// CallRaw invokes a remote method with an already serialized argument and
// returns the serialized result
func (c *Client) CallRaw(ctx context.Context, method string, arg []byte) ([]byte, error) {
	req, err := c.pipeline.Wrap(common.Envelope{MethodName: method, Data: arg})
	if err != nil {
		return nil, err
	}

	kind, resp, err := c.invoker.Call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s failed: %w", method, err)
	}

	if kind == common.KindError && len(resp) == 0 {
		return nil, &common.RemoteError{Method: method, Message: "call rejected"}
	}

	env, err := c.pipeline.Unwrap(resp)
	if err != nil {
		return nil, fmt.Errorf("invalid reply to %s: %w", method, err)
	}

	if kind == common.KindError || env.Err != "" {
		return nil, &common.RemoteError{Method: method, Message: env.Err}
	}
	return env.Data, nil
}

// NotifyRaw sends a notify with an already serialized argument
func (c *Client) NotifyRaw(ctx context.Context, method string, arg []byte) error {
	req, err := c.pipeline.Wrap(common.Envelope{MethodName: method, Data: arg})
	if err != nil {
		return err
	}
	if err := c.invoker.Notify(ctx, req); err != nil {
		return fmt.Errorf("notify %s failed: %w", method, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call serializes the argument and sends a request
func (c *Client) call(ctx context.Context, method string, arg any) ([]byte, error) {
	data, err := c.encodeArg(arg)
	if err != nil {
		return nil, err
	}
	return c.CallRaw(ctx, method, data)
}

// encodeArg serializes a call argument, nil means no argument
func (c *Client) encodeArg(arg any) ([]byte, error) {
	if arg == nil {
		return nil, nil
	}
	data, err := c.serializer.Serialize(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize argument: %v", err)
	}
	return data, nil
}
