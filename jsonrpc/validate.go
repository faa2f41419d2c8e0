package jsonrpc

import "encoding/json"

// Call is a validated request.
type Call struct {
	Method string
	ID     interface{}
	Args   Args
}

var requiredMembers = []string{"jsonrpc", "method", "id"}

// Validate checks a decoded request body against the JSON-RPC 2.0 envelope
// shape.
//
// It fails with CodeInvalidRequest when raw is not an object, when any of
// "jsonrpc", "method" or "id" is missing or null, when "jsonrpc" is not the
// string "2.0", when "method" is not a string, or when "id" is not a scalar.
// It fails with CodeInvalidParams when "params" is present but neither an
// array nor an object.
//
// Use RequestID to pick the id for the error envelope.
func Validate(raw interface{}) (*Call, *Fault) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, NewInvalidRequest()
	}
	for _, k := range requiredMembers {
		if v, ok := obj[k]; !ok || v == nil {
			return nil, NewInvalidRequest()
		}
	}
	if v, ok := obj["jsonrpc"].(string); !ok || v != Version {
		return nil, NewInvalidRequest()
	}
	method, ok := obj["method"].(string)
	if !ok {
		return nil, NewInvalidRequest()
	}
	id := obj["id"]
	if !isScalar(id) {
		return nil, NewInvalidRequest()
	}

	args, ok := ResolveParams(obj["params"])
	if !ok {
		return nil, NewInvalidParams(msgInvalidRequest)
	}
	return &Call{Method: method, ID: id, Args: args}, nil
}

// RequestID returns the id to echo for raw, whether or not raw is valid.
// It is NullID when raw has no usable id.
func RequestID(raw interface{}) interface{} {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return NullID
	}
	id, ok := obj["id"]
	if !ok || id == nil || !isScalar(id) {
		return NullID
	}
	return id
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, json.Number, float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
