package common

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Signature describes a function that can be called remotely:
//
//	func([ctx context.Context], [arg A]) ([R], [error])
//
// It is shared by the inbound method table and the outbound stubs so both
// sides accept the same shapes.
type Signature struct {
	HasContext   bool
	ArgType      reflect.Type // nil if the function takes no argument
	ResultType   reflect.Type // nil if the function returns no value
	ReturnsError bool
}

// ParseSignature checks a function type. The first skip parameters are ignored
// (1 for methods obtained from a reflect.Type, which include the receiver).
func ParseSignature(t reflect.Type, skip int) (Signature, error) {
	var sig Signature
	if t.Kind() != reflect.Func {
		return sig, fmt.Errorf("%w: %s is not a function", ErrInvalidSignature, t)
	}
	if t.IsVariadic() {
		return sig, fmt.Errorf("%w: variadic functions are not supported", ErrInvalidSignature)
	}

	params := make([]reflect.Type, 0, t.NumIn())
	for i := skip; i < t.NumIn(); i++ {
		params = append(params, t.In(i))
	}
	if len(params) > 0 && params[0] == contextType {
		sig.HasContext = true
		params = params[1:]
	}
	switch len(params) {
	case 0:
	case 1:
		if params[0] == contextType {
			return sig, fmt.Errorf("%w: context must be the first parameter", ErrInvalidSignature)
		}
		sig.ArgType = params[0]
	default:
		return sig, fmt.Errorf("%w: got %d", ErrTooManyParams, len(params))
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			sig.ReturnsError = true
		} else {
			sig.ResultType = t.Out(0)
		}
	case 2:
		if t.Out(1) != errorType || t.Out(0) == errorType {
			return sig, fmt.Errorf("%w: two results must be (value, error)", ErrInvalidSignature)
		}
		sig.ResultType = t.Out(0)
		sig.ReturnsError = true
	default:
		return sig, fmt.Errorf("%w: at most two results are supported", ErrInvalidSignature)
	}

	return sig, nil
}

// ExpectsReply reports whether a caller of this shape waits for the reply.
// Functions returning a value wait, functions returning nothing or only an error do not.
func (s Signature) ExpectsReply() bool {
	return s.ResultType != nil
}
