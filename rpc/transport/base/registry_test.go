package base

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"testing"
	"time"
)

func TestRegistryRegisterTake(t *testing.T) {
	r := NewRegistry()
	call := NewPendingCall()

	if err := r.Register(call); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if err := r.Register(call); !errors.Is(err, common.ErrDuplicateCall) {
		t.Errorf("Expected ErrDuplicateCall, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 pending call, got %d", r.Len())
	}

	got, ok := r.Take(call.ID())
	if !ok || got != call {
		t.Fatalf("Expected to take the registered call")
	}
	if _, ok := r.Take(call.ID()); ok {
		t.Errorf("Expected the call to be removed after take")
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}
}

func TestRegistryFailAll(t *testing.T) {
	r := NewRegistry()
	calls := make([]*PendingCall, 5)
	for i := range calls {
		calls[i] = NewPendingCall()
		if err := r.Register(calls[i]); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
	}

	if n := r.FailAll(common.ErrConnectionClosed); n != 5 {
		t.Errorf("Expected 5 failed calls, got %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}

	for _, call := range calls {
		select {
		case <-call.Done():
		default:
			t.Fatalf("Expected call to be resolved")
		}
		if _, _, err := call.Result(); !errors.Is(err, common.ErrConnectionClosed) {
			t.Errorf("Expected ErrConnectionClosed, got %v", err)
		}
	}
}

func TestPendingCallSingleFire(t *testing.T) {
	call := NewPendingCall()
	call.Write([]byte("ok"))
	call.Complete(common.KindResponse)

	// later completions are ignored
	call.Fail(common.ErrConnectionClosed)
	call.Complete(common.KindError)

	kind, data, err := call.Wait(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if kind != common.KindResponse || string(data) != "ok" {
		t.Errorf("Expected response 'ok', got %v %q", kind, data)
	}
}

func TestPendingCallWaitContext(t *testing.T) {
	call := NewPendingCall()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, _, err := call.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestPendingCallIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewPendingCall().ID().String()
		if seen[id] {
			t.Fatalf("Duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestInboundCall(t *testing.T) {
	call := NewInboundCall(NewPendingCall().ID(), common.KindNotify)
	call.Write([]byte("ab"))
	call.Write([]byte("c"))

	if string(call.Payload()) != "abc" {
		t.Errorf("Expected payload abc, got %q", call.Payload())
	}
	if call.ExpectsReply() {
		t.Errorf("Notify must not expect a reply")
	}
	if !NewInboundCall(call.ID(), common.KindRequest).ExpectsReply() {
		t.Errorf("Request must expect a reply")
	}
}
