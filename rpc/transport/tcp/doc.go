// Package tcp provides the TCP socket connectors for the base transport.
//
// Key Components:
//
//   - NewClientConnector: dials TCP endpoints (host:port)
//
//   - NewServerConnector: listens on TCP endpoints
//
// Both connectors apply the socket options of common.TransportConfig
// (no delay, keep alive, linger and kernel buffer sizes) to every connection.
package tcp
