package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts between request/response bytes and generic values. Decode
// yields the same shapes for every codec: map[string]interface{} for
// objects, []interface{} for arrays, and scalars.
type Codec interface {
	ContentType() string
	Decode(data []byte) (interface{}, error)
	Encode(w io.Writer, v interface{}) error
}

var (
	// JSON decodes numbers as json.Number so ids echo back unchanged.
	JSON Codec = jsonCodec{}
	// CBOR carries the same envelopes as RFC 8949 CBOR.
	CBOR Codec = newCBORCodec()
)

// CodecFor picks a codec from a Content-Type header value. An empty value
// selects JSON.
func CodecFor(contentType string) (Codec, bool) {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return JSON, true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, false
	}
	switch {
	case mt == "application/json", strings.HasSuffix(mt, "+json"):
		return JSON, true
	case mt == "application/cbor", strings.HasSuffix(mt, "+cbor"):
		return CBOR, true
	}
	return nil, false
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("jsonrpc: trailing data after request")
	}
	return v, nil
}

func (jsonCodec) Encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type cborCodec struct {
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("jsonrpc: cbor decode mode: " + err.Error())
	}
	return cborCodec{dec: dm}
}

func (cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Decode(data []byte) (interface{}, error) {
	var v interface{}
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (cborCodec) Encode(w io.Writer, v interface{}) error {
	return cbor.NewEncoder(w).Encode(v)
}
