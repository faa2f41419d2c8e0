package endpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// defaultFieldLimit is the maximum byte length of a decoded field when no
// maxLength tag is present.
var defaultFieldLimit = 16 * 1024 // 16KB

// Unmarshal populates dst (must be a non-nil pointer to a struct) from the request.
//
// Supported struct tags:
//   - `header:"Name"` copies a request header into a string or []byte field.
//   - `body:""` reads the whole request body. string and []byte fields get the
//     raw bytes; any other type is decoded as JSON.
//   - `maxLength:"n"` bounds the field in bytes. Absent means 16KB; "0" or ""
//     means no limit.
//
// At most one body field is allowed. Untagged struct fields are recursed into;
// other untagged fields are left unchanged.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}

	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct (or pointer to struct)"))
	}

	bodyRead := false
	return unmarshalStruct(r, root, &bodyRead)
}

func unmarshalStruct(r *http.Request, structVal reflect.Value, bodyRead *bool) error {
	t := structVal.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		fv := structVal.Field(i)

		limit, err := fieldLengthLimit(sf)
		if err != nil {
			return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
		}

		if name, ok := sf.Tag.Lookup("header"); ok {
			name = strings.TrimSpace(strings.Split(name, ",")[0])
			if name == "-" {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			val := r.Header.Get(name)
			if val == "" {
				continue
			}
			if limit > 0 && len(val) > limit {
				return newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: header %q exceeds %d bytes", name, limit))
			}
			if err := setRaw(fv, []byte(val)); err != nil {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: header %q -> %s: %w", name, sf.Name, err))
			}
			continue
		}

		if name, ok := sf.Tag.Lookup("body"); ok {
			if strings.TrimSpace(name) == "-" {
				continue
			}
			if *bodyRead {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields: %s", sf.Name))
			}
			*bodyRead = true
			data, err := readBody(r, limit)
			if err != nil {
				return err
			}
			if err := setBody(fv, data); err != nil {
				return newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body -> %s: %w", sf.Name, err))
			}
			continue
		}

		if fv.Kind() == reflect.Struct {
			if err := unmarshalStruct(r, fv, bodyRead); err != nil {
				return err
			}
		}
	}
	return nil
}

// readBody reads at most limit bytes of the body; limit <= 0 reads everything.
func readBody(r *http.Request, limit int) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	var src io.Reader = r.Body
	if limit > 0 {
		src = io.LimitReader(r.Body, int64(limit)+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: read body: %w", err))
	}
	if limit > 0 && len(data) > limit {
		return nil, newEndpointError(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: decode: body exceeds %d bytes", limit))
	}
	return data, nil
}

func setRaw(fv reflect.Value, data []byte) error {
	if !fv.CanSet() {
		return errors.New("field is not settable")
	}
	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(string(data))
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
		fv.SetBytes(data)
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

func setBody(fv reflect.Value, data []byte) error {
	if fv.Kind() == reflect.String || (fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8) {
		return setRaw(fv, data)
	}
	if len(data) == 0 {
		return nil
	}
	if !fv.CanAddr() {
		return errors.New("field is not addressable")
	}
	return json.Unmarshal(data, fv.Addr().Interface())
}

// fieldLengthLimit returns the byte limit for a field; 0 means unlimited.
func fieldLengthLimit(sf reflect.StructField) (int, error) {
	tag, ok := sf.Tag.Lookup("maxLength")
	if !ok {
		return defaultFieldLimit, nil
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return 0, fmt.Errorf("maxLength tag: %w", err)
	}
	if n < 0 {
		return 0, errors.New("maxLength tag must be non-negative")
	}
	return n, nil
}
