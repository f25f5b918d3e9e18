package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"reflect"
)

// RegisterService registers every exported method of rcvr under its method name.
//
// Accepted method shapes (A and R are any serializable types):
//
//	func (s *T) Name([ctx context.Context], [arg A]) ([R], [error])
//
// A method with an unsupported shape fails the whole registration.
func (d *Dispatcher) RegisterService(rcvr any) error {
	if rcvr == nil {
		return fmt.Errorf("rpc: service must not be nil")
	}

	val := reflect.ValueOf(rcvr)
	typ := val.Type()
	if typ.NumMethod() == 0 {
		return fmt.Errorf("rpc: type %s has no exported methods", typ)
	}

	handlers := make(map[string]HandleFunc, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}

		sig, err := common.ParseSignature(method.Type, 1)
		if err != nil {
			return fmt.Errorf("rpc: method %s.%s: %w", typ, method.Name, err)
		}
		handlers[method.Name] = d.methodHandler(method.Name, val.Method(i), sig)
	}

	for name, fn := range handlers {
		d.Register(name, fn)
	}
	Logger.Infof("Registered service %s with %d methods", typ, len(handlers))
	return nil
}

// methodHandler calls a bound method through reflection
func (d *Dispatcher) methodHandler(name string, fn reflect.Value, sig common.Signature) HandleFunc {
	return func(ctx context.Context, arg []byte) ([]byte, error) {
		in := make([]reflect.Value, 0, 2)
		if sig.HasContext {
			in = append(in, reflect.ValueOf(ctx))
		}

		switch {
		case sig.ArgType != nil && len(arg) == 0:
			return nil, fmt.Errorf("%w: %s expects one argument", common.ErrArgumentCount, name)
		case sig.ArgType == nil && len(arg) > 0:
			return nil, fmt.Errorf("%w: %s takes no argument", common.ErrArgumentCount, name)
		case sig.ArgType != nil:
			argv := reflect.New(sig.ArgType)
			if err := d.config.Serializer.Deserialize(arg, argv.Interface()); err != nil {
				return nil, fmt.Errorf("failed to deserialize argument: %v", err)
			}
			in = append(in, argv.Elem())
		}

		out := fn.Call(in)

		if sig.ReturnsError {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return nil, errv.Interface().(error)
			}
		}
		if sig.ResultType == nil {
			return nil, nil
		}
		return d.config.Serializer.Serialize(out[0].Interface())
	}
}
