// Package common provides core data structures and utilities shared across
// the dRPC packages. It defines the payload envelope, configuration structures,
// error values and the logging setup used by all other packages.
//
// The package focuses on:
//   - Payload envelope definition for every call and reply
//   - Frame kinds that tell the receive loop how to route a frame
//   - Configuration structures for peers and their transports
//   - Custom logging implementation integrated with Dragonboat's logger facade
//
// Key Components:
//
//   - Envelope: The payload of every frame. It carries the method name, the
//     serialized argument or result, an optional integrity tag and an error
//     message for failed calls.
//
//   - FrameKind: The first byte of every frame payload (request, notify,
//     response, error). Replies are matched by correlation id, the kind only
//     decides whether a frame answers a call or starts a new one.
//
//   - PeerConfig: Configuration for one side of a connection, including socket
//     tuning, buffer sizes, handler concurrency, rate limits and the optional
//     signing and encryption secrets.
//
//   - RemoteError: The error a caller receives when the remote handler failed.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logging facade while providing consistent formatting across the application.
package common
