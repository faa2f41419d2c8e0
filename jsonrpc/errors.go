package jsonrpc

import "errors"

// Error codes reserved by JSON-RPC 2.0. Applications may use any other
// integer for their own faults.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

const (
	msgParseError     = "Parse error"
	msgInvalidRequest = "Invalid json rpc request"
	msgMethodNotFound = "Method not found"
	msgInternalError  = "Internal error"
)

// Fault is a JSON-RPC error object. Handlers return a *Fault (possibly
// wrapped) to choose the code and message sent to the client.
type Fault struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func (f *Fault) Error() string {
	if f == nil {
		return msgInternalError
	}
	return f.Message
}

// NewFault returns a fault with an application-defined code.
func NewFault(code int, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// WithData returns a copy of f carrying data.
func (f *Fault) WithData(data interface{}) *Fault {
	c := *f
	c.Data = data
	return &c
}

func NewParseError() *Fault {
	return NewFault(CodeParseError, msgParseError)
}

// NewInvalidRequest reports a malformed envelope.
func NewInvalidRequest() *Fault {
	return NewFault(CodeInvalidRequest, msgInvalidRequest)
}

func NewMethodNotFound() *Fault {
	return NewFault(CodeMethodNotFound, msgMethodNotFound)
}

// NewInvalidParams reports params of the wrong shape or type.
func NewInvalidParams(message string) *Fault {
	return NewFault(CodeInvalidParams, message)
}

func NewInternalError() *Fault {
	return NewFault(CodeInternalError, msgInternalError)
}

// AsFault converts any error to a Fault.
//
// A *Fault anywhere in err's chain is returned unchanged, and a nil *Fault
// becomes an internal error. Any other error becomes CodeInternalError
// carrying err's message, or "Internal error" when the message is empty.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		if f == nil {
			return NewInternalError()
		}
		return f
	}
	msg := err.Error()
	if msg == "" {
		msg = msgInternalError
	}
	return NewFault(CodeInternalError, msg)
}
