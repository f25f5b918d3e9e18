// Package server implements the inbound side of the RPC layer: the method
// table that answers calls arriving on a connection.
//
// Key Components:
//
//   - Dispatcher: implements base.InboundHandler. Every inbound frame is
//     unwrapped (decrypt, decode, verify), looked up by method name and run
//     on a bounded set of goroutines. Requests are always answered, either
//     with a response frame or an error frame carrying the error message.
//     Notifies are never answered, their failures are logged.
//
//   - Register / Handle: explicit registration of raw (bytes in, bytes out)
//     or typed methods.
//
//   - RegisterService: registers all exported methods of a value by reflection.
//
// Usage Example:
//
//	d := server.NewDispatcher(config)
//	server.Handle(d, "Add", func(ctx context.Context, args []int) (int, error) {
//	  return args[0] + args[1], nil
//	})
//	conn := base.NewConnection(socket, base.ConnectionConfig{}, d)
//	conn.Start()
//
// Errors that never reach the caller as a successful reply: unknown method,
// argument count mismatch, undecodable argument, handler error, handler panic,
// rate limit rejection and integrity failures.
package server
