// Package call implements the call command which sends a single request or
// notify to a remote peer.
package call
