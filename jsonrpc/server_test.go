package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mnehpets/rpcserve/endpoint"
)

type sumParams struct {
	Method string `json:"method"`
	A      int    `json:"sum_a"`
	B      int    `json:"sum_b"`
}

func newTestMux(opts ...Option) *http.ServeMux {
	mux := http.NewServeMux()
	HandleOpen(mux, "/hello", func(ctx context.Context, args Args) (interface{}, error) {
		method, _ := args.String(0)
		return "Hello from " + method, nil
	}, opts...)
	HandleOpen(mux, "/sum", func(ctx context.Context, args Args) (interface{}, error) {
		var p sumParams
		if err := args.Bind(&p); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Hello from %s and your sum is %d", p.Method, p.A+p.B), nil
	}, opts...)
	HandleFixed(mux, "/fixed", "fixed_method", func(ctx context.Context, args Args) (interface{}, error) {
		return "Hello from fixed method", nil
	}, opts...)
	HandleFixed(mux, "/diff", "another_fixed_method", func(ctx context.Context, args Args) (interface{}, error) {
		var p struct {
			A int `json:"diff_a"`
			B int `json:"diff_b"`
		}
		if err := args.Bind(&p); err != nil {
			return nil, err
		}
		return p.A - p.B, nil
	}, opts...)
	HandleOpen(mux, "/error", func(ctx context.Context, args Args) (interface{}, error) {
		return nil, errors.New("SOME ERROR")
	}, opts...)
	HandleOpen(mux, "/fault", func(ctx context.Context, args Args) (interface{}, error) {
		return nil, fmt.Errorf("wrapped: %w", NewFault(-1000, "custom error"))
	}, opts...)
	HandleOpen(mux, "/panic", func(ctx context.Context, args Args) (interface{}, error) {
		panic("something went wrong")
	}, opts...)
	HandleOpen(mux, "/empty", func(ctx context.Context, args Args) (interface{}, error) {
		return nil, errors.New("")
	}, opts...)
	return mux
}

func post(t *testing.T, h http.Handler, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, h, req)
}

func postTo(t *testing.T, h http.Handler, path, body string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, h, req)
}

func serve(t *testing.T, h http.Handler, req *http.Request) map[string]interface{} {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp["jsonrpc"])
	_, hasResult := resp["result"]
	_, hasError := resp["error"]
	assert.True(t, hasResult != hasError, "exactly one of result/error: %v", resp)
	return resp
}

func errorCode(t *testing.T, resp map[string]interface{}) int {
	t.Helper()
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected error object, got %v", resp)
	return int(errObj["code"].(float64))
}

func errorMessage(resp map[string]interface{}) string {
	errObj, _ := resp["error"].(map[string]interface{})
	msg, _ := errObj["message"].(string)
	return msg
}

func TestOpenDispatch_ExactEnvelope(t *testing.T) {
	mux := newTestMux()
	req := httptest.NewRequest(http.MethodPost, "/hello", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":123,"method":"hi","params":null}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Result().Header.Get("Content-Type"))
	assert.Equal(t, `{"jsonrpc":"2.0","id":123,"result":"Hello from hi"}`+"\n", rec.Body.String())
}

func TestOpenDispatch_PositionalAndNamed(t *testing.T) {
	mux := newTestMux()

	resp := postTo(t, mux, "/sum", `{"jsonrpc":"2.0","id":123,"method":"sum","params":[1,2]}`)
	assert.Equal(t, "Hello from sum and your sum is 3", resp["result"])

	resp = postTo(t, mux, "/sum", `{"jsonrpc":"2.0","id":123,"method":"sum","params":{"sum_a":3,"sum_b":1}}`)
	assert.Equal(t, "Hello from sum and your sum is 4", resp["result"])
}

func TestFixedDispatch(t *testing.T) {
	mux := newTestMux()

	resp := postTo(t, mux, "/fixed", `{"jsonrpc":"2.0","id":1,"method":"fixed_method"}`)
	assert.Equal(t, "Hello from fixed method", resp["result"])

	resp = postTo(t, mux, "/diff", `{"jsonrpc":"2.0","id":1,"method":"another_fixed_method","params":[2,1]}`)
	assert.Equal(t, float64(1), resp["result"])

	resp = postTo(t, mux, "/fixed", `{"jsonrpc":"2.0","id":7,"method":"non_existant"}`)
	assert.Equal(t, CodeMethodNotFound, errorCode(t, resp))
	assert.Equal(t, "Method not found", errorMessage(resp))
	assert.Equal(t, float64(7), resp["id"])
}

func TestFixedDispatch_NoMethodInjected(t *testing.T) {
	var got Args
	mux := http.NewServeMux()
	HandleFixed(mux, "/rpc", "m", func(ctx context.Context, args Args) (interface{}, error) {
		got = args
		return nil, nil
	})
	resp := postTo(t, mux, "/rpc", `{"jsonrpc":"2.0","id":1,"method":"m","params":[5]}`)
	assert.Nil(t, resp["result"])
	assert.Len(t, got.Positional, 1)
	assert.Equal(t, json.Number("5"), got.Positional[0])
}

func TestInvalidRequests(t *testing.T) {
	mux := newTestMux()

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantID   interface{}
	}{
		{"MissingID", `{"jsonrpc":"2.0","method":"hi"}`, CodeInvalidRequest, NullID},
		{"NullID", `{"jsonrpc":"2.0","method":"hi","id":null}`, CodeInvalidRequest, NullID},
		{"MissingMethod", `{"jsonrpc":"2.0","id":5}`, CodeInvalidRequest, float64(5)},
		{"NullMethod", `{"jsonrpc":"2.0","method":null,"id":5}`, CodeInvalidRequest, float64(5)},
		{"NumericMethod", `{"jsonrpc":"2.0","method":42,"id":5}`, CodeInvalidRequest, float64(5)},
		{"MissingVersion", `{"method":"hi","id":"a"}`, CodeInvalidRequest, "a"},
		{"WrongVersion", `{"jsonrpc":"1.0","method":"hi","id":"a"}`, CodeInvalidRequest, "a"},
		{"NumericVersion", `{"jsonrpc":2.0,"method":"hi","id":"a"}`, CodeInvalidRequest, "a"},
		{"NotObject", `"hello"`, CodeInvalidRequest, NullID},
		{"Batch", `[{"jsonrpc":"2.0","method":"hi","id":1}]`, CodeInvalidRequest, NullID},
		{"ObjectID", `{"jsonrpc":"2.0","method":"hi","id":{"a":1}}`, CodeInvalidRequest, NullID},
		{"ScalarParams", `{"jsonrpc":"2.0","method":"sum","params":2,"id":123}`, CodeInvalidParams, float64(123)},
		{"StringParams", `{"jsonrpc":"2.0","method":"sum","params":"x","id":123}`, CodeInvalidParams, float64(123)},
		{"BoolParams", `{"jsonrpc":"2.0","method":"sum","params":true,"id":123}`, CodeInvalidParams, float64(123)},
		{"ParseError", `{"jsonrpc":"2.0","method":`, CodeParseError, NullID},
		{"EmptyBody", ``, CodeParseError, NullID},
		{"TrailingData", `{"jsonrpc":"2.0","method":"hi","id":1} {}`, CodeParseError, NullID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postTo(t, mux, "/sum", tt.body)
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
			assert.Equal(t, tt.wantID, resp["id"])

			errObj := resp["error"].(map[string]interface{})
			data, ok := errObj["data"]
			assert.True(t, ok, "data member must be present")
			assert.Nil(t, data)
		})
	}
}

func TestValidationMessages(t *testing.T) {
	mux := newTestMux()

	resp := postTo(t, mux, "/hello", `{"jsonrpc":"1.0","method":"hi","id":1}`)
	assert.Equal(t, "Invalid json rpc request", errorMessage(resp))

	resp = postTo(t, mux, "/hello", `{"jsonrpc":"2.0","method":"hi","id":1,"params":1}`)
	assert.Equal(t, "Invalid json rpc request", errorMessage(resp))
}

func TestIDEcho(t *testing.T) {
	mux := newTestMux()

	for _, id := range []string{`0`, `"abc"`, `""`, `-7`, `1.5`, `true`, `12345678901234567890`} {
		t.Run(id, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hello", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"x","id":`+id+`}`)))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			var resp map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, id, string(resp["id"]))
		})
	}
}

func TestHandlerErrors(t *testing.T) {
	mux := newTestMux()

	tests := []struct {
		path     string
		wantCode int
		wantMsg  string
	}{
		{"/error", CodeInternalError, "SOME ERROR"},
		{"/fault", -1000, "custom error"},
		{"/panic", CodeInternalError, "Internal error"},
		{"/empty", CodeInternalError, "Internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := postTo(t, mux, tt.path, `{"jsonrpc":"2.0","method":"some_method","id":123}`)
			assert.Equal(t, tt.wantCode, errorCode(t, resp))
			assert.Equal(t, tt.wantMsg, errorMessage(resp))
			assert.Equal(t, float64(123), resp["id"])
		})
	}
}

func TestPanicIsLoggedNotLeaked(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mux := newTestMux(WithLogger(zap.New(core)))

	resp := postTo(t, mux, "/panic", `{"jsonrpc":"2.0","method":"m","id":1}`)
	assert.NotContains(t, errorMessage(resp), "something went wrong")

	entries := logs.FilterMessage("jsonrpc: handler panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "something went wrong", entries[0].ContextMap()["panic"])
}

func TestHTTPLevelFailures(t *testing.T) {
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) { return nil, nil }))
	req = httptest.NewRequest(http.MethodPut, "/", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMissingContentTypeDefaultsToJSON(t *testing.T) {
	mux := newTestMux()
	req := httptest.NewRequest(http.MethodPost, "/hello", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"hi","id":1}`)))
	resp := serve(t, mux, req)
	assert.Equal(t, "Hello from hi", resp["result"])
}

func TestProcessors(t *testing.T) {
	type ctxKey struct{}
	executed := false
	annotate := endpoint.ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
		executed = true
		return next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, "test-value")))
	})
	s := NewServer(Fixed("get", func(ctx context.Context, args Args) (interface{}, error) {
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	}), WithProcessors(annotate))

	resp := post(t, s.Handler(), `{"jsonrpc":"2.0","method":"get","id":1}`)
	assert.True(t, executed)
	assert.Equal(t, "test-value", resp["result"])

	deny := endpoint.ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
		return endpoint.Error(http.StatusForbidden, "access denied", nil)
	})
	s = NewServer(Fixed("get", nil), WithProcessors(deny))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"get","id":1}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareOrderAndValidatedOnly(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Invoker) Invoker {
			return func(ctx context.Context, call *Call) (interface{}, error) {
				order = append(order, name+":"+call.Method)
				return next(ctx, call)
			}
		}
	}
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		order = append(order, "handler")
		return "ok", nil
	}), WithMiddleware(mw("first"), mw("second")))

	post(t, s.Handler(), `{"jsonrpc":"2.0","method":"m","id":1}`)
	assert.Equal(t, []string{"first:m", "second:m", "handler"}, order)

	order = nil
	post(t, s.Handler(), `{"jsonrpc":"1.0","method":"m","id":1}`)
	assert.Empty(t, order)
}

func TestServe_DirectValue(t *testing.T) {
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		return args.Len(), nil
	}))
	resp := s.Serve(context.Background(), map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "count",
		"id":      "x",
		"params":  []interface{}{1, 2},
	})
	require.False(t, resp.IsError())
	assert.Equal(t, "x", resp.ID)
	assert.Equal(t, 3, resp.Result)
}

func TestNilFaultIsInternalError(t *testing.T) {
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		var f *Fault
		return nil, f
	}))

	var resp map[string]interface{}
	require.NotPanics(t, func() {
		resp = post(t, s.Handler(), `{"jsonrpc":"2.0","method":"m","id":7}`)
	})
	assert.Equal(t, CodeInternalError, errorCode(t, resp))
	assert.Equal(t, "Internal error", errorMessage(resp))
	assert.Equal(t, float64(7), resp["id"])
}

func TestMiddlewarePanicYieldsEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		return "ok", nil
	}), WithLogger(zap.New(core)), WithMiddleware(func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (interface{}, error) {
			panic("middleware broke")
		}
	}))

	resp := post(t, s.Handler(), `{"jsonrpc":"2.0","method":"m","id":1}`)
	assert.Equal(t, CodeInternalError, errorCode(t, resp))
	assert.Equal(t, "Internal error", errorMessage(resp))
	assert.Equal(t, 1, logs.FilterMessage("jsonrpc: middleware panic").Len())
}

func TestMiddlewareSeesHandlerPanicAsError(t *testing.T) {
	var seen error
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		panic("boom")
	}), WithMiddleware(func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (interface{}, error) {
			out, err := next(ctx, call)
			seen = err
			return out, err
		}
	}))

	resp := s.Serve(context.Background(), map[string]interface{}{"jsonrpc": "2.0", "method": "m", "id": "a"})
	require.True(t, resp.IsError())
	require.Error(t, seen)
	assert.Equal(t, CodeInternalError, AsFault(seen).Code)
}

func TestUnencodableResultBecomesInternalError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		return math.NaN(), nil
	}), WithLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"m","id":3}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"error":{"code":-32603,"message":"Internal error","data":null}}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "NaN")

	entries := logs.FilterMessage("jsonrpc: encode response failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "application/json", entries[0].ContextMap()["content_type"])
}

func TestEncode_CBORFallback(t *testing.T) {
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		return nil, nil
	}))

	data := s.Encode(NewResult("c-1", make(chan int)), CBOR)
	v, err := CBOR.Decode(data)
	require.NoError(t, err)
	resp, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "c-1", resp["id"])
	errObj, ok := resp["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(CodeInternalError), errObj["code"])
}

func TestResultIsNotHTMLEscaped(t *testing.T) {
	s := NewServer(Open(func(ctx context.Context, args Args) (interface{}, error) {
		return "<b>&</b>", nil
	}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":"2.0","method":"m","id":1}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":"<b>&</b>"}`+"\n", rec.Body.String())
}
