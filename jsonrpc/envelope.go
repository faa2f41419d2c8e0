package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Version is the only accepted value of the "jsonrpc" member.
const Version = "2.0"

// NullID is echoed as the response id when the request id could not be
// determined.
const NullID = "null"

// Response is an outbound JSON-RPC envelope. Exactly one of Result and Error
// is meaningful: a non-nil Error makes it an error response, and Result is
// then never serialized.
type Response struct {
	ID     interface{}
	Result interface{}
	Error  *Fault
}

type resultWire struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result"`
}

type errorWire struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Error   *Fault      `json:"error"`
}

// NewResult builds a success envelope.
func NewResult(id, result interface{}) *Response {
	return &Response{ID: id, Result: result}
}

// NewErrorResponse builds an error envelope. A nil id is replaced by NullID
// and a nil fault by an internal error.
func NewErrorResponse(id interface{}, fault *Fault) *Response {
	if id == nil {
		id = NullID
	}
	if fault == nil {
		fault = NewInternalError()
	}
	return &Response{ID: id, Error: fault}
}

// IsError reports whether r is an error envelope.
func (r *Response) IsError() bool {
	return r.Error != nil
}

func (r *Response) wire() interface{} {
	if r.Error != nil {
		return errorWire{JSONRPC: Version, ID: r.ID, Error: r.Error}
	}
	return resultWire{JSONRPC: Version, ID: r.ID, Result: r.Result}
}

// MarshalJSON encodes r without HTML escaping so string results keep their
// exact text.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.wire()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (r *Response) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(r.wire())
}
