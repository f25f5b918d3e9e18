package common

// --------------------------------------------------------------------------
// Envelope Structure
// --------------------------------------------------------------------------

// Envelope is the payload carried inside a frame. It names the method that is
// called (or answered) and carries the serialized argument or result.
type Envelope struct {
	// MethodName is the name of the remote method
	MethodName string `json:"methodName"`

	// Data is the serialized argument (request) or result (response)
	Data []byte `json:"data,omitempty"`

	// Tag is the optional integrity tag over Data
	Tag []byte `json:"hmac,omitempty"`

	// Err is empty if no error, otherwise contains the error message (only used in error replies)
	Err string `json:"err,omitempty"`
}

// --------------------------------------------------------------------------
// Frame Kind Definition
// --------------------------------------------------------------------------

// FrameKind is the first payload byte of every frame. It tells the receive loop
// whether a frame answers an outstanding call or starts a new inbound one.
type FrameKind uint8

const (
	KindUnknown  FrameKind = iota
	KindRequest            // A call that expects a reply
	KindNotify             // A call that expects no reply
	KindResponse           // A successful reply
	KindError              // A failed reply, the envelope carries the error message
	KindCallback           // A call made from inside a handler back over the same connection, expects a reply
)

// IsReply reports whether the kind answers an outstanding call
func (k FrameKind) IsReply() bool {
	return k == KindResponse || k == KindError
}

// IsCall reports whether the kind starts a new inbound call
func (k FrameKind) IsCall() bool {
	return k == KindRequest || k == KindNotify || k == KindCallback
}

// ExpectsReply reports whether the caller of an inbound call waits for an answer
func (k FrameKind) ExpectsReply() bool {
	return k == KindRequest || k == KindCallback
}

// String returns the string representation of a FrameKind.
func (k FrameKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotify:
		return "notify"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	case KindCallback:
		return "callback"
	default:
		return "unknown"
	}
}
