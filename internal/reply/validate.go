package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaInvalid is the single failure kind of Validate.
var ErrSchemaInvalid = errors.New("SCHEMA_INVALID")

// ValidationError carries the structural errors behind a SCHEMA_INVALID result.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return ErrSchemaInvalid.Error() + ": " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrSchemaInvalid
}

// Validate is the authoritative contract check. Before checking it strips
// undeclared properties, fills schema defaults and coerces near-miss shapes
// (a lone value where an array is expected, a numeric string where a number is
// expected). It never supplies business defaults; anything still missing is rejected.
func Validate(candidate any) (Reply, error) {
	doc, err := jsonValue(candidate)
	if err != nil {
		return Reply{}, &ValidationError{Errors: []string{"candidate is not JSON: " + err.Error()}}
	}
	doc = conform(contract, doc)

	if err := compiled.Validate(doc); err != nil {
		return Reply{}, &ValidationError{Errors: collect(err)}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return Reply{}, &ValidationError{Errors: []string{err.Error()}}
	}
	var out Reply
	if err := json.Unmarshal(b, &out); err != nil {
		return Reply{}, &ValidationError{Errors: []string{err.Error()}}
	}
	return out, nil
}

// jsonValue produces a private copy of v made of plain JSON types.
func jsonValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func conform(n *node, v any) any {
	if n == nil {
		return v
	}
	if list, ok := v.([]any); ok && len(list) == 1 && (n.Type == "string" || n.Type == "number") {
		v = list[0]
	}

	switch n.Type {
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		for k := range m {
			if _, declared := n.Properties[k]; !declared {
				delete(m, k)
			}
		}
		for k, child := range n.Properties {
			cur, present := m[k]
			if !present {
				if len(child.Default) > 0 {
					var def any
					if err := json.Unmarshal(child.Default, &def); err == nil {
						m[k] = def
					}
				}
				continue
			}
			m[k] = conform(child, cur)
		}
		return m

	case "array":
		list, ok := v.([]any)
		if !ok {
			switch v.(type) {
			case string, float64, bool:
				list = []any{v}
			default:
				return v
			}
		}
		for i := range list {
			list[i] = conform(n.Items, list[i])
		}
		return list

	case "string":
		switch x := v.(type) {
		case nil:
			return ""
		case bool:
			return strconv.FormatBool(x)
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return v

	case "number":
		switch x := v.(type) {
		case nil:
			return float64(0)
		case bool:
			if x {
				return float64(1)
			}
			return float64(0)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
		return v
	}
	return v
}

func collect(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
