// Package peer ties the transport, the dispatcher and the client together.
//
// A Peer owns one connection, answers the remote side with its handler and
// calls the remote side through bound stubs. Both ends of a connection are
// peers, so calls flow in both directions over the same socket.
//
// Usage Example:
//
//	// server side
//	host := peer.NewHost(tcp.NewServerConnector(), config, func(net.Conn) any {
//	  return &Calculator{}
//	})
//	go host.Serve(ctx)
//
//	// client side
//	p, err := peer.Dial(ctx, tcp.NewClientConnector(), config, nil)
//	var calc struct {
//	  Add func(ctx context.Context, args []int) (int, error)
//	}
//	err = p.Bind(&calc)
//	sum, err := calc.Add(ctx, []int{2, 3}) // 5
//
// HostRegistry shares hosts between components that listen on the same endpoint.
package peer
