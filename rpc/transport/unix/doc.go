// Package unix provides the Unix domain socket connectors for the base
// transport. They are meant for peers on the same machine and skip the TCP/IP
// stack.
//
// Listen removes a stale socket file before binding to the path.
package unix
