// Package client implements the outbound side of the RPC layer.
//
// Key Components:
//
//   - Client: wraps calls into envelopes (optionally signed and encrypted) and
//     sends them over a transport.IInvoker.
//
//   - Call / Notify: generic helpers for single calls. Call waits for the reply,
//     Notify returns once the frame is written.
//
//   - Bind: fills a struct of func fields (the shape of the remote side) with
//     stubs created by reflect.MakeFunc. Functions returning (R, error) wait
//     for the reply, functions returning only an error or nothing are notifies.
//
// Error replies of the remote side are returned as *common.RemoteError,
// transport failures wrap common.ErrConnectionClosed.
package client
