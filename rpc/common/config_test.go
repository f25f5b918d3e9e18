package common

import (
	"strings"
	"testing"
)

func TestWithDefaults(t *testing.T) {
	c := PeerConfig{}.WithDefaults()

	if c.ReceiveBufferSize != DefaultReceiveBufferSize {
		t.Errorf("Expected receive buffer %d, got %d", DefaultReceiveBufferSize, c.ReceiveBufferSize)
	}
	if c.MaxFrameSize != DefaultMaxFrameSize {
		t.Errorf("Expected max frame size %d, got %d", DefaultMaxFrameSize, c.MaxFrameSize)
	}
	if c.MaxConcurrentHandlers != DefaultMaxConcurrentHandlers {
		t.Errorf("Expected %d handlers, got %d", DefaultMaxConcurrentHandlers, c.MaxConcurrentHandlers)
	}
	if c.Serializer != "json" || c.EnvelopeCodec != "json" || c.LogLevel != "info" {
		t.Errorf("Unexpected defaults: %+v", c)
	}

	// set values must survive
	c = PeerConfig{ReceiveBufferSize: 128, Serializer: "gob"}.WithDefaults()
	if c.ReceiveBufferSize != 128 || c.Serializer != "gob" {
		t.Errorf("Explicit values were overwritten: %+v", c)
	}
}

func TestPeerConfigString(t *testing.T) {
	c := DefaultPeerConfig()
	c.Transport.Endpoint = "localhost:9000"
	c.SignSecret = "secret"

	s := c.String()
	for _, want := range []string{"TRANSPORT", "localhost:9000", "Signing", "enabled", "Encryption", "disabled", "unlimited"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected config string to contain %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "secret\n") {
		t.Errorf("Config string must not leak secrets:\n%s", s)
	}
}

func TestFrameKind(t *testing.T) {
	tests := []struct {
		kind         FrameKind
		name         string
		isCall       bool
		isReply      bool
		expectsReply bool
	}{
		{KindRequest, "request", true, false, true},
		{KindNotify, "notify", true, false, false},
		{KindResponse, "response", false, true, false},
		{KindError, "error", false, true, false},
		{KindCallback, "callback", true, false, true},
		{KindUnknown, "unknown", false, false, false},
		{FrameKind(42), "unknown", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.String() != tt.name {
				t.Errorf("Expected %s, got %s", tt.name, tt.kind)
			}
			if tt.kind.IsCall() != tt.isCall || tt.kind.IsReply() != tt.isReply || tt.kind.ExpectsReply() != tt.expectsReply {
				t.Errorf("Unexpected classification of %s", tt.kind)
			}
		})
	}
}

func TestRemoteError(t *testing.T) {
	err := &RemoteError{Method: "Add", Message: "boom"}
	if err.Error() != "remote error in Add: boom" {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
	err = &RemoteError{Message: "boom"}
	if err.Error() != "remote error: boom" {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
}
