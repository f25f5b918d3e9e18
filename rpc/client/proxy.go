package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Bind fills every func field of the struct pointed to by remote with a stub
// calling the remote method of the same name. The `rpc:"name"` tag overrides
// the method name, `rpc:"-"` skips the field.
//
// Accepted field shapes (A and R are any serializable types):
//
//	func([ctx context.Context], [arg A]) (R, error)  // waits for the reply
//	func([ctx context.Context], [arg A]) error       // notify, returns the write error
//	func([ctx context.Context], [arg A])             // notify
//
// Any other shape is reported before a single field is set.
//
// Usage:
//
//	var calc struct {
//	  Add func(ctx context.Context, args []int) (int, error)
//	  Log func(msg string) `rpc:"Print"`
//	}
//	if err := client.Bind(c, &calc); err != nil { ... }
//	sum, err := calc.Add(ctx, []int{2, 3})
func Bind(c *Client, remote any) error {
	v := reflect.ValueOf(remote)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: remote must be a pointer to a struct, got %T", common.ErrInvalidSignature, remote)
	}
	st := v.Elem()
	typ := st.Type()

	stubs := make(map[int]reflect.Value, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		name := field.Name
		if tag, ok := field.Tag.Lookup("rpc"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		if !field.IsExported() {
			continue
		}
		if field.Type.Kind() != reflect.Func {
			return fmt.Errorf("%w: field %s is not a function", common.ErrInvalidSignature, field.Name)
		}

		sig, err := common.ParseSignature(field.Type, 0)
		if err != nil {
			return fmt.Errorf("rpc: field %s: %w", field.Name, err)
		}
		if sig.ResultType != nil && !sig.ReturnsError {
			return fmt.Errorf("%w: field %s returns a value without an error", common.ErrInvalidSignature, field.Name)
		}

		stubs[i] = makeStub(c, name, field.Type, sig)
	}

	for i, stub := range stubs {
		st.Field(i).Set(stub)
	}
	Logger.Debugf("Bound %d remote methods to %s", len(stubs), typ)
	return nil
}

// makeStub creates the function calling one remote method
func makeStub(c *Client, method string, fnType reflect.Type, sig common.Signature) reflect.Value {
	return reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if sig.HasContext {
			if !in[0].IsNil() {
				ctx = in[0].Interface().(context.Context)
			}
			in = in[1:]
		}

		var arg any
		if sig.ArgType != nil {
			arg = in[0].Interface()
		}

		// fire and forget
		if !sig.ExpectsReply() {
			err := Notify(ctx, c, method, arg)
			if sig.ReturnsError {
				return []reflect.Value{errorValue(err)}
			}
			if err != nil {
				Logger.Warningf("Notify %s failed: %v", method, err)
			}
			return nil
		}

		data, err := c.call(ctx, method, arg)
		if err == nil && len(data) > 0 {
			result := reflect.New(sig.ResultType)
			if err = c.serializer.Deserialize(data, result.Interface()); err == nil {
				return []reflect.Value{result.Elem(), errorValue(nil)}
			}
			err = fmt.Errorf("failed to deserialize result of %s: %v", method, err)
		}
		return []reflect.Value{reflect.Zero(sig.ResultType), errorValue(err)}
	})
}

// errorValue converts an error into a reflect.Value of type error
func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
