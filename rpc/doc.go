// Package rpc provides a symmetric peer-to-peer RPC framework over stream
// sockets. Both ends of a connection are equal: either side can call methods
// exposed by the other, and any number of calls may be in flight at once.
//
// The package is organized into several subpackages:
//
//   - common: Configuration, the message envelope, errors, logging and the
//     method signature rules shared by client and server.
//
//   - transport: The invoker/replier interfaces and the framed connection
//     (base) with its pluggable socket connectors (tcp, unix).
//
//   - serializer: Value serializers (JSON, GOB) and envelope codecs
//     (JSON, GOB, Binary).
//
//   - security: Optional HMAC signing and AEAD encryption of envelopes.
//
//   - server: The dispatcher that runs inbound calls against registered methods.
//
//   - client: Typed calls, notifies and struct binding of a remote service.
//
//   - peer: Ties a connection, a dispatcher and a client together, plus hosts
//     that accept peers.
package rpc
