package peer

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRPC/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// Calculator is served by the host side
type Calculator struct{}

func (c *Calculator) Add(args []int) int {
	sum := 0
	for _, a := range args {
		sum += a
	}
	return sum
}

func (c *Calculator) Fail(msg string) error {
	return errors.New(msg)
}

// calculatorRemote is the shape of Calculator seen by the caller
type calculatorRemote struct {
	Add  func(ctx context.Context, args []int) (int, error)
	Fail func(ctx context.Context, msg string) (struct{}, error)
}

// Greeter is served by the dialing side and called back by the host
type Greeter struct {
	mu    sync.Mutex
	names []string
}

func (g *Greeter) Greet(name string) string {
	g.mu.Lock()
	g.names = append(g.names, name)
	g.mu.Unlock()
	return "hello " + name
}

func testConfig(endpoint string) common.PeerConfig {
	config := common.DefaultPeerConfig()
	config.Transport.Endpoint = endpoint
	config.TimeoutSecond = 5
	return config
}

// startHost starts a TCP host serving a Calculator on a random loopback port
func startHost(t *testing.T, config common.PeerConfig, opts ...Option) *Host {
	t.Helper()

	host := NewHost(tcp.NewServerConnector(), config, func(net.Conn) any {
		return &Calculator{}
	}, opts...)
	require.NoError(t, host.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	go host.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		host.Close()
	})
	return host
}

func dialHost(t *testing.T, host *Host, config common.PeerConfig, handler any) *Peer {
	t.Helper()

	config.Transport.Endpoint = host.Addr().String()
	p, err := Dial(context.Background(), tcp.NewClientConnector(), config, handler)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestAddOverTCP runs the Add scenario end to end: [2,3] -> 5
func TestAddOverTCP(t *testing.T) {
	host := startHost(t, testConfig("127.0.0.1:0"))
	p := dialHost(t, host, testConfig(""), nil)

	var calc calculatorRemote
	require.NoError(t, p.Bind(&calc))

	sum, err := calc.Add(context.Background(), []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, 5, sum)

	// the generic helper takes the same path
	sum, err = Call[int](context.Background(), p, "Add", []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, 5, sum)

	_, err = calc.Fail(context.Background(), "nope")
	var remoteErr *common.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	require.Equal(t, "nope", remoteErr.Message)
}

func TestConcurrentCalls(t *testing.T) {
	host := startHost(t, testConfig("127.0.0.1:0"))
	p := dialHost(t, host, testConfig(""), nil)

	var calc calculatorRemote
	require.NoError(t, p.Bind(&calc))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sum, err := calc.Add(context.Background(), []int{i, i})
			if err != nil {
				t.Errorf("Call %d failed: %v", i, err)
				return
			}
			if sum != 2*i {
				t.Errorf("Expected %d, got %d", 2*i, sum)
			}
		}(i)
	}
	wg.Wait()
}

// TestCallback lets the host call the dialing peer over the same connection
func TestCallback(t *testing.T) {
	greeter := &Greeter{}
	greeted := make(chan string, 1)

	host := NewHost(tcp.NewServerConnector(), testConfig("127.0.0.1:0"), nil)
	host.OnConnect(func(p *Peer) {
		var remote struct {
			Greet func(ctx context.Context, name string) (string, error)
		}
		if err := p.Bind(&remote); err != nil {
			t.Errorf("Bind failed: %v", err)
			return
		}
		msg, err := remote.Greet(context.Background(), "host")
		if err != nil {
			t.Errorf("Callback failed: %v", err)
			return
		}
		greeted <- msg
	})
	require.NoError(t, host.Listen())
	go host.Serve(context.Background())
	t.Cleanup(func() { host.Close() })

	dialHost(t, host, testConfig(""), greeter)

	select {
	case msg := <-greeted:
		require.Equal(t, "hello host", msg)
	case <-time.After(2 * time.Second):
		t.Fatalf("Timeout waiting for callback")
	}
}

// TestHandlerCallsBack makes a handler call the caller while the caller waits for it
func TestHandlerCallsBack(t *testing.T) {
	register := RegisterFunc(func(d *server.Dispatcher) error {
		server.Handle(d, "Relay", func(ctx context.Context, name string) (string, error) {
			return name, nil
		})
		return nil
	})

	a, b := net.Pipe()
	left, err := New(a, testConfig(""), register)
	require.NoError(t, err)
	defer left.Close()

	var right *Peer
	right, err = New(b, testConfig(""), func(d *server.Dispatcher) error {
		server.Handle(d, "Ask", func(ctx context.Context, name string) (string, error) {
			// nested call back to the left side
			return Call[string](ctx, right, "Relay", "nested "+name)
		})
		return nil
	})
	require.NoError(t, err)
	defer right.Close()

	msg, err := Call[string](context.Background(), left, "Ask", "x")
	require.NoError(t, err)
	require.Equal(t, "nested x", msg)
}

// TestNestedCallbacksWithOneHandlerSlot runs left -> right.Foo -> left.Bar -> right.Baz
// while each side allows a single running handler and calls have no deadline
func TestNestedCallbacksWithOneHandlerSlot(t *testing.T) {
	config := testConfig("")
	config.TimeoutSecond = 0
	config.MaxConcurrentHandlers = 1

	var left, right *Peer
	a, b := net.Pipe()

	left, err := New(a, config, func(d *server.Dispatcher) error {
		server.Handle(d, "Bar", func(ctx context.Context, n int) (int, error) {
			return Call[int](ctx, right, "Baz", n+1)
		})
		return nil
	})
	require.NoError(t, err)
	defer left.Close()

	right, err = New(b, config, func(d *server.Dispatcher) error {
		server.Handle(d, "Foo", func(ctx context.Context, n int) (int, error) {
			return Call[int](ctx, left, "Bar", n+1)
		})
		server.Handle(d, "Baz", func(ctx context.Context, n int) (int, error) {
			return n + 1, nil
		})
		return nil
	})
	require.NoError(t, err)
	defer right.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := Call[int](ctx, left, "Foo", i*10)
			assert.NoError(t, err)
			assert.Equal(t, i*10+3, n)
		}(i)
	}
	wg.Wait()
}

func TestSignedAndEncrypted(t *testing.T) {
	config := testConfig("127.0.0.1:0")
	config.EnvelopeCodec = "binary"
	config.Serializer = "gob"
	config.SignSecret = "sign"
	config.EncryptSecret = "enc"

	host := startHost(t, config)
	p := dialHost(t, host, config, nil)

	sum, err := Call[int](context.Background(), p, "Add", []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, 5, sum)
}

func TestMismatchedSecretIsRejected(t *testing.T) {
	config := testConfig("127.0.0.1:0")
	config.SignSecret = "server"
	host := startHost(t, config)

	other := config
	other.SignSecret = "client"
	p := dialHost(t, host, other, nil)

	_, err := Call[int](context.Background(), p, "Add", []int{2, 3})
	require.Error(t, err)
}

func TestHostTracksPeers(t *testing.T) {
	host := startHost(t, testConfig("127.0.0.1:0"))

	p1 := dialHost(t, host, testConfig(""), nil)
	p2 := dialHost(t, host, testConfig(""), nil)

	// a call makes sure the host side finished accepting
	for _, p := range []*Peer{p1, p2} {
		_, err := Call[int](context.Background(), p, "Add", []int{1})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(host.Peers()) == 2 }, time.Second, 5*time.Millisecond)

	p1.Close()
	require.Eventually(t, func() bool { return len(host.Peers()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// closing the host disconnects the remaining peer
	host.Close()
	select {
	case <-p2.Done():
		require.ErrorIs(t, p2.Err(), common.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatalf("Peer was not closed by the host")
	}

	_, err := Call[int](context.Background(), p2, "Add", []int{1})
	require.ErrorIs(t, err, common.ErrConnectionClosed)
}

// TestHostClosedBeforeAccept hands a connection to a closed host, the
// connection must be refused instead of running on the closed buffer pool
func TestHostClosedBeforeAccept(t *testing.T) {
	host := NewHost(tcp.NewServerConnector(), testConfig("127.0.0.1:0"), func(net.Conn) any { return &Calculator{} })
	require.NoError(t, host.Close())

	local, remote := net.Pipe()
	accepted := make(chan struct{})
	go func() {
		host.accept(local)
		close(accepted)
	}()

	p, err := New(remote, testConfig(""), nil)
	require.NoError(t, err)
	defer p.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("accept did not return for a closed host")
	}
	require.Empty(t, host.Peers())

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Connection to a closed host was not closed")
	}
	_, err = Call[int](context.Background(), p, "Add", []int{2, 3})
	require.ErrorIs(t, err, common.ErrConnectionClosed)
}

func TestUnixSocket(t *testing.T) {
	config := testConfig(filepath.Join(t.TempDir(), "drpc.sock"))

	host := NewHost(unix.NewServerConnector(), config, func(net.Conn) any { return &Calculator{} })
	require.NoError(t, host.Listen())
	go host.Serve(context.Background())
	defer host.Close()

	p, err := Dial(context.Background(), unix.NewClientConnector(), config, nil)
	require.NoError(t, err)
	defer p.Close()

	sum, err := Call[int](context.Background(), p, "Add", []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, 5, sum)
}

func TestInvalidHandler(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	_, err := New(a, testConfig(""), struct{}{})
	require.Error(t, err)

	config := testConfig("")
	config.Serializer = "xml"
	_, err = New(a, config, nil)
	require.Error(t, err)
}

func TestHostRegistry(t *testing.T) {
	r := NewHostRegistry()
	created := 0
	create := func() (*Host, error) {
		created++
		return NewHost(tcp.NewServerConnector(), testConfig("127.0.0.1:0"), nil), nil
	}

	h1, err := r.GetOrCreate("a", create)
	require.NoError(t, err)
	h2, err := r.GetOrCreate("a", create)
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, 1, created)

	_, err = r.GetOrCreate("b", create)
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())

	_, err = r.GetOrCreate("c", func() (*Host, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	_, ok := r.Get("c")
	require.False(t, ok)

	r.Remove("a")
	_, ok = r.Get("a")
	require.False(t, ok)

	r.CloseAll()
	require.Equal(t, 0, r.Len())
}

func TestDialFailure(t *testing.T) {
	// grab a free port and close it again
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = Dial(context.Background(), tcp.NewClientConnector(), testConfig(addr), nil)
	require.Error(t, err)
}
