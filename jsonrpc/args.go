package jsonrpc

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Args holds the resolved params of a call. At most one of Positional and
// Named is populated; both are empty when params was absent or null.
type Args struct {
	Positional []interface{}
	Named      map[string]interface{}
}

// ResolveParams converts a params value into Args. It reports false when
// params is neither absent, null, an array nor an object.
func ResolveParams(params interface{}) (Args, bool) {
	switch p := params.(type) {
	case nil:
		return Args{}, true
	case []interface{}:
		return Args{Positional: p}, true
	case map[string]interface{}:
		return Args{Named: p}, true
	}
	return Args{}, false
}

// Len returns the number of positional args.
func (a Args) Len() int {
	return len(a.Positional)
}

// Value returns the i'th positional arg, or nil when out of range.
func (a Args) Value(i int) interface{} {
	if i < 0 || i >= len(a.Positional) {
		return nil
	}
	return a.Positional[i]
}

// String returns the i'th positional arg if it is a string.
func (a Args) String(i int) (string, bool) {
	s, ok := a.Value(i).(string)
	return s, ok
}

// Lookup returns a named arg.
func (a Args) Lookup(name string) (interface{}, bool) {
	v, ok := a.Named[name]
	return v, ok
}

// Prepend returns a copy of a with v inserted as the first positional arg.
// Named args are shared, not copied.
func (a Args) Prepend(v interface{}) Args {
	pos := make([]interface{}, 0, len(a.Positional)+1)
	pos = append(pos, v)
	pos = append(pos, a.Positional...)
	return Args{Positional: pos, Named: a.Named}
}

var errBindTarget = errors.New("jsonrpc: bind: dst must be a non-nil pointer to a struct")

// Bind copies the args into the struct pointed to by dst.
//
// Positional args fill the struct's fields in declaration order. Named args
// fill fields by their json tag, or by field name when untagged. Fields
// tagged json:"-", unexported fields and the blank field are skipped. Values
// are converted with mapstructure, so JSON numbers bind to any numeric type
// and objects bind to nested structs and maps.
//
// Bind fails with CodeInvalidParams when there are more positional args than
// fields, when a name matches no field, when a field is given both
// positionally and by name, or when a value cannot be converted.
func (a Args) Bind(dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errBindTarget
	}
	names := paramNames(rv.Elem().Type())

	if len(a.Positional) > len(names) {
		return NewInvalidParams("invalid number of params")
	}
	input := make(map[string]interface{}, len(a.Positional)+len(a.Named))
	for i, v := range a.Positional {
		input[names[i]] = v
	}
	for k, v := range a.Named {
		if !containsName(names, k) {
			return NewInvalidParams("unknown param: " + k)
		}
		if _, dup := input[k]; dup {
			return NewInvalidParams("duplicate param: " + k)
		}
		input[k] = v
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  dst,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return NewInvalidParams("invalid params")
	}
	return nil
}

// paramNames lists the wire names of t's bindable fields in declaration order.
func paramNames(t reflect.Type) []string {
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Name == "_" || !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "" {
			names = append(names, field.Name)
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		names = append(names, name)
	}
	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
