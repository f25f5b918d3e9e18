// Package transport defines the interfaces between the RPC layer and the
// stream transport.
//
// Key Components:
//
//   - IInvoker: sends calls (request or notify frames) to the remote side.
//
//   - IReplier: answers inbound calls with response or error frames.
//
//   - IConnection: a bidirectional connection, both an invoker and a replier.
//
// The frame engine implementing these interfaces lives in the base package,
// the tcp and unix packages provide the socket connectors.
package transport
