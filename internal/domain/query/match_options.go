package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// shape records how a MatchOptions value was written so that JSON round-trips.
type shape uint8

const (
	shapeObject shape = iota
	shapeScalar
	shapeArray
)

// MatchOptions expresses set semantics for a predicate field.
// Any: at least one value must match. All: every value must match.
// Not: none of the values may match. Present keys are ANDed.
type MatchOptions struct {
	Any []string
	All []string
	Not []string

	shape shape
	// scalar keys inside the object form, e.g. {"not": "x"}
	anyScalar, allScalar, notScalar bool
}

// Exactly matches a single value (scalar JSON form).
func Exactly(v string) MatchOptions {
	return MatchOptions{Any: []string{v}, shape: shapeScalar}
}

// OneOf matches any of the values (array JSON form).
func OneOf(vs ...string) MatchOptions {
	return MatchOptions{Any: vs, shape: shapeArray}
}

// IsEmpty reports whether no constraint is set.
func (m MatchOptions) IsEmpty() bool {
	return len(m.Any) == 0 && len(m.All) == 0 && len(m.Not) == 0
}

// Validate rejects empty options and empty values.
func (m MatchOptions) Validate() error {
	if m.IsEmpty() {
		return errors.New("match options require at least one of any/all/not")
	}
	for _, group := range [][]string{m.Any, m.All, m.Not} {
		for _, v := range group {
			if v == "" {
				return errors.New("match options contain an empty value")
			}
		}
	}
	return nil
}

// MarshalJSON writes the options back in the shape they were read in.
func (m MatchOptions) MarshalJSON() ([]byte, error) {
	switch m.shape {
	case shapeScalar:
		if len(m.Any) == 1 && len(m.All) == 0 && len(m.Not) == 0 {
			return json.Marshal(m.Any[0])
		}
	case shapeArray:
		if len(m.All) == 0 && len(m.Not) == 0 {
			return json.Marshal(nonNil(m.Any))
		}
	}

	obj := make(map[string]any, 3)
	putKey(obj, "any", m.Any, m.anyScalar)
	putKey(obj, "all", m.All, m.allScalar)
	putKey(obj, "not", m.Not, m.notScalar)
	return json.Marshal(obj)
}

func putKey(obj map[string]any, key string, vals []string, scalar bool) {
	if vals == nil {
		return
	}
	if scalar && len(vals) == 1 {
		obj[key] = vals[0]
		return
	}
	obj[key] = vals
}

func nonNil(vs []string) []string {
	if vs == nil {
		return []string{}
	}
	return vs
}

// UnmarshalJSON accepts a scalar, an array or an {any, all, not} object.
func (m *MatchOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty match options")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode scalar: %w", err)
		}
		*m = Exactly(s)
		return nil
	case '[':
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("decode array: %w", err)
		}
		*m = OneOf(vs...)
		return nil
	case '{':
		return m.unmarshalObject(data)
	default:
		return fmt.Errorf("match options must be a string, array or object, got %s", data)
	}
}

func (m *MatchOptions) unmarshalObject(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}

	var out MatchOptions
	for key, val := range raw {
		vs, scalar, err := decodeStrings(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "any":
			out.Any, out.anyScalar = vs, scalar
		case "all":
			out.All, out.allScalar = vs, scalar
		case "not":
			out.Not, out.notScalar = vs, scalar
		default:
			return fmt.Errorf("unknown match option %q", key)
		}
	}
	*m = out
	return nil
}

func decodeStrings(data json.RawMessage) ([]string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, false, err //nolint:wrapcheck // wrapped by caller
		}
		return []string{s}, true, nil
	}
	var vs []string
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, false, err //nolint:wrapcheck // wrapped by caller
	}
	return nonNil(vs), false, nil
}
