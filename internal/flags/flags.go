// Package flags holds the per-search bag of named switches and typed values
// that modes and the terrain oracle consult.
package flags

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var ErrFlagType = errors.New("flag has wrong value type")

// Well-known flag names.
const (
	NoFly          = "no-fly"
	NoDig          = "no-dig"
	NoDoors        = "no-doors"
	AllowIronDoor  = "allow-iron-door"
	MaxStepHeight  = "max-step-height"
	MaxFall        = "max-fall"
	MaxDigHardness = "max-dig-hardness"
)

// Set is immutable once built. Absent flags read as unset.
type Set struct {
	values map[string]any
}

// New copies values. A nil value marks a plain boolean switch.
func New(values map[string]any) Set {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		k = normalize(k)
		if k == "" {
			continue
		}
		if v == nil {
			v = true
		}
		cp[k] = v
	}
	return Set{values: cp}
}

// Parse reads "name" and "name=value" entries. Values are parsed as int, float,
// bool, then string.
func Parse(entries []string) (Set, error) {
	values := map[string]any{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		name, raw, ok := strings.Cut(e, "=")
		name = normalize(name)
		if name == "" {
			return Set{}, fmt.Errorf("flag %q: empty name", e)
		}
		if !ok {
			values[name] = true
			continue
		}
		values[name] = parseValue(strings.TrimSpace(raw))
	}
	return Set{values: values}, nil
}

func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// With returns a copy with one more entry.
func (s Set) With(name string, value any) Set {
	cp := make(map[string]any, len(s.values)+1)
	for k, v := range s.values {
		cp[k] = v
	}
	out := Set{values: cp}
	if value == nil {
		value = true
	}
	if n := normalize(name); n != "" {
		out.values[n] = value
	}
	return out
}

// Has reports whether a switch is on. A non-boolean value counts as set.
func (s Set) Has(name string) bool {
	v, ok := s.values[normalize(name)]
	if !ok {
		return false
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

func (s Set) Value(name string) (any, bool) {
	v, ok := s.values[normalize(name)]
	return v, ok
}

func (s Set) Int(name string, def int) (int, error) {
	v, ok := s.values[normalize(name)]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int64(n)) {
			return int(n), nil
		}
	}
	return def, fmt.Errorf("%w: %s=%v (%T) is not an integer", ErrFlagType, name, v, v)
}

func (s Set) Float(name string, def float64) (float64, error) {
	v, ok := s.values[normalize(name)]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return def, fmt.Errorf("%w: %s=%v (%T) is not a number", ErrFlagType, name, v, v)
}

func (s Set) Text(name string, def string) (string, error) {
	v, ok := s.values[normalize(name)]
	if !ok {
		return def, nil
	}
	str, isStr := v.(string)
	if !isStr {
		return def, fmt.Errorf("%w: %s=%v (%T) is not a string", ErrFlagType, name, v, v)
	}
	return str, nil
}

// Decode fills a struct whose fields carry `flag:"name"` tags. Fields for
// absent flags keep their current value, so callers pre-populate defaults.
func (s Set) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "flag",
		Result:           out,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(s.values); err != nil {
		return fmt.Errorf("%w: %v", ErrFlagType, err)
	}
	return nil
}

func (s Set) Names() []string {
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s Set) Len() int { return len(s.values) }

func (s Set) String() string {
	names := s.Names()
	parts := make([]string, 0, len(names))
	for _, n := range names {
		v := s.values[n]
		if b, ok := v.(bool); ok && b {
			parts = append(parts, n)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", n, v))
	}
	return strings.Join(parts, ",")
}
