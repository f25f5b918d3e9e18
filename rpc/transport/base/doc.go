// Package base implements the frame engine shared by all stream transports
// (TCP, Unix sockets). Protocol specific behaviour is injected through the
// IClientConnector and IServerConnector interfaces.
//
// Frame format (all integers big endian):
//
//	[0:4)   total size = 16 + len(payload)
//	[4:20)  correlation id (UUID)
//	[20:21) frame kind (request, notify, response, error)
//	[21:..) envelope bytes
//
// Key Components:
//
//   - Frame codec (EncodeFrame, DecodeHeader, WriteFrame, ReadFrame): builds and
//     parses frames. Writes use net.Buffers so header and body go out in one call.
//
//   - BufferPool: reusable byte buffers keyed by exact size. The receive loop reads
//     payloads in chunks of one rented buffer.
//
//   - Registry / PendingCall: correlates replies with outbound calls by id. A call is
//     registered before its frame is written and removed when the reply arrives.
//
//   - Connection: owns the socket and runs the single receive loop. Replies resolve
//     their pending call (out of order), requests and notifies go to the InboundHandler.
//     Closing fails every pending call with common.ErrConnectionClosed.
//
//   - Dial / Acceptor: connection setup with retries on the client side and the
//     accept loop on the server side.
//
// Thread Safety:
//
// Connection methods may be called from any goroutine. Frames are written under a
// mutex, the registry and the buffer pool are built on xsync maps. Only the receive
// loop reads from the socket.
package base
