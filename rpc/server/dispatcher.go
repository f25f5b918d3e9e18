package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/security"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/ValentinKolb/dRPC/rpc/transport/base"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("rpc")

var (
	dispatchErrors  = metrics.NewCounter("drpc_dispatch_errors_total")
	rateLimited     = metrics.NewCounter("drpc_dispatch_rate_limited_total")
	overloaded      = metrics.NewCounter("drpc_dispatch_overloaded_total")
	handlerDuration = metrics.NewHistogram("drpc_handler_duration_seconds")
)

// --------------------------------------------------------------------------
// Dispatcher Config
// --------------------------------------------------------------------------

// DispatcherConfig holds everything the dispatcher needs to decode and answer calls
type DispatcherConfig struct {
	// Serializer decodes arguments and encodes results
	Serializer serializer.IRPCSerializer
	// Pipeline unwraps inbound envelopes and wraps replies
	Pipeline *security.Pipeline
	// MaxConcurrentHandlers bounds the handlers running at the same time, callbacks do not count
	MaxConcurrentHandlers int
	// MaxQueuedCalls bounds the calls waiting for a handler slot, further calls are rejected
	// with ErrOverloaded (0 = 4 * MaxConcurrentHandlers)
	MaxQueuedCalls int
	// HandlerTimeout is the deadline of the handler context (0 = none)
	HandlerTimeout time.Duration
	// RateLimit is the number of accepted calls per second (0 = unlimited)
	RateLimit float64
	// RateBurst is the token bucket size of the rate limiter
	RateBurst int
	// Middlewares wrap every registered method, the first one is the outermost
	Middlewares []Middleware
}

// DispatcherConfigFrom builds the dispatcher config described by a peer config
func DispatcherConfigFrom(config common.PeerConfig) (DispatcherConfig, error) {
	config = config.WithDefaults()

	s, err := serializer.New(config.Serializer)
	if err != nil {
		return DispatcherConfig{}, err
	}
	pipeline, err := security.NewPipelineFromConfig(config)
	if err != nil {
		return DispatcherConfig{}, err
	}

	return DispatcherConfig{
		Serializer:            s,
		Pipeline:              pipeline,
		MaxConcurrentHandlers: config.MaxConcurrentHandlers,
		HandlerTimeout:        time.Duration(config.TimeoutSecond) * time.Second,
		RateLimit:             config.RateLimit,
		RateBurst:             config.RateBurst,
	}, nil
}

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher is the inbound method table of one connection. It decodes
// inbound calls, runs the registered method on a bounded set of goroutines
// and answers requests with a response or an error frame.
type Dispatcher struct {
	config  DispatcherConfig
	methods *xsync.MapOf[string, HandleFunc]
	limiter *rate.Limiter

	sem      chan struct{}
	queued   atomic.Int64
	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Serializer == nil {
		config.Serializer = serializer.NewJSONSerializer()
	}
	if config.Pipeline == nil {
		config.Pipeline = security.NewPipeline(serializer.NewSerializerEnvelopeCodec(serializer.NewJSONSerializer()), nil, nil)
	}
	if config.MaxConcurrentHandlers <= 0 {
		config.MaxConcurrentHandlers = common.DefaultMaxConcurrentHandlers
	}
	if config.MaxQueuedCalls <= 0 {
		config.MaxQueuedCalls = 4 * config.MaxConcurrentHandlers
	}

	d := &Dispatcher{
		config:  config,
		methods: xsync.NewMapOf[string, HandleFunc](),
		sem:     make(chan struct{}, config.MaxConcurrentHandlers),
		stop:    make(chan struct{}),
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return d
}

// Register adds a method working on serialized bytes. A second registration replaces the first.
func (d *Dispatcher) Register(name string, fn HandleFunc) {
	for i := len(d.config.Middlewares) - 1; i >= 0; i-- {
		fn = d.config.Middlewares[i](name, fn)
	}
	if _, loaded := d.methods.LoadAndStore(name, fn); loaded {
		Logger.Warningf("Replaced handler for method %s", name)
	}
	Logger.Debugf("Registered method %s", name)
}

// Handle registers a typed method. The argument is decoded into A and the
// result encoded with the dispatcher's serializer.
func Handle[A, R any](d *Dispatcher, name string, fn func(ctx context.Context, arg A) (R, error)) {
	d.Register(name, func(ctx context.Context, arg []byte) ([]byte, error) {
		if len(arg) == 0 {
			return nil, fmt.Errorf("%w: %s expects one argument", common.ErrArgumentCount, name)
		}
		var a A
		if err := d.config.Serializer.Deserialize(arg, &a); err != nil {
			return nil, fmt.Errorf("failed to deserialize argument: %v", err)
		}
		res, err := fn(ctx, a)
		if err != nil {
			return nil, err
		}
		return d.config.Serializer.Serialize(res)
	})
}

// Methods returns the sorted names of all registered methods
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, d.methods.Size())
	d.methods.Range(func(name string, _ HandleFunc) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// HandleInbound implements base.InboundHandler. It never blocks the receive loop:
//   - callbacks (calls made by a remote handler that waits on one of ours) run at once
//     without a slot, otherwise nested calls would wait for slots held by their own callers
//   - other calls take a free slot or wait in a bounded queue for one
//   - calls finding the queue full are rejected with ErrOverloaded
func (d *Dispatcher) HandleInbound(r transport.IReplier, call *base.InboundCall) {
	select {
	case <-d.stop:
		d.fail(r, call, "", common.ErrConnectionClosed)
		return
	default:
	}

	if call.Kind() == common.KindCallback {
		d.run(r, call, false)
		return
	}

	select {
	case d.sem <- struct{}{}:
		d.run(r, call, true)
		return
	default:
	}

	if d.queued.Add(1) > int64(d.config.MaxQueuedCalls) {
		d.queued.Add(-1)
		overloaded.Inc()
		d.fail(r, call, "", common.ErrOverloaded)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
			d.queued.Add(-1)
		case <-d.stop:
			d.queued.Add(-1)
			d.fail(r, call, "", common.ErrConnectionClosed)
			return
		}
		defer func() { <-d.sem }()
		d.process(r, call)
	}()
}

// run processes a call on its own goroutine, releasing the slot if it holds one
func (d *Dispatcher) run(r transport.IReplier, call *base.InboundCall, slot bool) {
	d.wg.Add(1)
	go func() {
		defer func() {
			if slot {
				<-d.sem
			}
			d.wg.Done()
		}()
		d.process(r, call)
	}()
}

// Stop rejects new calls, running handlers continue
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Close rejects new calls and waits for the running handlers
func (d *Dispatcher) Close() {
	d.Stop()
	d.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// process decodes, runs and answers one inbound call
func (d *Dispatcher) process(r transport.IReplier, call *base.InboundCall) {
	env, err := d.config.Pipeline.Unwrap(call.Payload())
	if err != nil {
		d.fail(r, call, "", err)
		return
	}
	if env.Err != "" {
		d.fail(r, call, env.MethodName, fmt.Errorf("call carries an error: %s", env.Err))
		return
	}

	if d.limiter != nil && !d.limiter.Allow() {
		rateLimited.Inc()
		d.fail(r, call, env.MethodName, common.ErrRateLimited)
		return
	}

	fn, ok := d.methods.Load(env.MethodName)
	if !ok {
		d.fail(r, call, env.MethodName, fmt.Errorf("%w: %s", common.ErrMethodNotFound, env.MethodName))
		return
	}

	ctx := base.WithinHandler(context.Background(), r)
	if d.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.HandlerTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := invoke(ctx, fn, env.Data)
	handlerDuration.Update(time.Since(start).Seconds())
	metrics.GetOrCreateCounter(fmt.Sprintf(`drpc_dispatch_calls_total{method=%q}`, env.MethodName)).Inc()

	if err != nil {
		d.fail(r, call, env.MethodName, err)
		return
	}
	if !call.ExpectsReply() {
		return
	}

	b, err := d.config.Pipeline.Wrap(common.Envelope{MethodName: env.MethodName, Data: result})
	if err != nil {
		d.fail(r, call, env.MethodName, err)
		return
	}
	if err := r.Reply(context.Background(), call.ID(), b); err != nil {
		Logger.Errorf("Failed to reply to %s (%s): %v", call.ID(), env.MethodName, err)
	}
}

// fail answers a request with an error frame, notify failures are only logged
func (d *Dispatcher) fail(r transport.IReplier, call *base.InboundCall, method string, err error) {
	dispatchErrors.Inc()

	if !call.ExpectsReply() {
		Logger.Warningf("Notify %s failed: %v", method, err)
		return
	}
	Logger.Debugf("Call %s (%s) failed: %v", call.ID(), method, err)

	b, werr := d.config.Pipeline.WrapError(method, err.Error())
	if werr != nil {
		Logger.Errorf("Failed to encode error reply for %s: %v", call.ID(), werr)
		b = nil
	}
	if rerr := r.ReplyError(context.Background(), call.ID(), b); rerr != nil {
		Logger.Errorf("Failed to send error reply for %s: %v", call.ID(), rerr)
	}
}

// invoke runs a handler and turns a panic into an error
func invoke(ctx context.Context, fn HandleFunc, arg []byte) (result []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			Logger.Errorf("Handler panicked: %v\n%s", rec, debug.Stack())
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return fn(ctx, arg)
}
