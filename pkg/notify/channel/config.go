package channel

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
)

// Config is the generic, decoded configuration of one channel. Values are the
// scalars, lists and maps produced by a YAML or JSON decoder.
type Config map[string]any

// Lookup returns the value for key. nil, empty strings, empty slices and
// empty maps count as absent.
func (c Config) Lookup(key string) (any, bool) {
	v, ok := c[key]
	if !ok || isEmpty(v) {
		return nil, false
	}
	return v, true
}

// Has reports whether key is present and non-empty.
func (c Config) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// String returns key as a string. Numbers and booleans are formatted.
func (c Config) String(key string) (string, bool) {
	v, ok := c.Lookup(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// StringOr returns key as a string, or def when absent.
func (c Config) StringOr(key, def string) string {
	if s, ok := c.String(key); ok {
		return s
	}
	return def
}

// Strings returns key as a string list. A single string is split on commas.
func (c Config) Strings(key string) ([]string, bool) {
	v, ok := c.Lookup(key)
	if !ok {
		return nil, false
	}
	var out []string
	switch t := v.(type) {
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	default:
		out = []string{fmt.Sprint(t)}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Bool returns key as a boolean. Strings are parsed with strconv.ParseBool;
// anything unparsable is reported absent.
func (c Config) Bool(key string) (bool, bool) {
	v, ok := c.Lookup(key)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// Int returns key as an int. Integral floats and numeric strings are
// accepted; other values produce an error.
func (c Config) Int(key string) (int, bool, error) {
	v, ok := c.Lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return t, true, nil
	case int8, int16, int32, int64:
		return int(reflect.ValueOf(t).Int()), true, nil
	case uint, uint8, uint16, uint32, uint64:
		return int(reflect.ValueOf(t).Uint()), true, nil
	case float32:
		return floatToInt(key, float64(t))
	case float64:
		return floatToInt(key, t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, true, fmt.Errorf("%s: %q is not an integer", key, t)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("%s: unsupported type %T", key, v)
}

func floatToInt(key string, f float64) (int, bool, error) {
	if f != float64(int(f)) {
		return 0, true, fmt.Errorf("%s: %v is not an integer", key, f)
	}
	return int(f), true, nil
}

// Require returns a CHANNEL_CONFIG error naming every key that is absent.
func (c Config) Require(channel string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nerrors.NewMissingFieldsError(channel, missing)
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
