package reply

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// camelKeys maps spellings models commonly drift into onto the contract's snake_case keys.
var camelKeys = map[string]string{
	"apiVersion":    "api_version",
	"schemaVersion": "schema_version",
	"sessionId":     "session_id",
	"messageId":     "message_id",
	"factsUsed":     "facts_used",
}

// Normalize repairs raw provider output toward the contract shape. It never
// fails. A value that is not an object has nothing to repair and yields a nil
// candidate, which Validate rejects. The input is not modified.
func Normalize(raw any) map[string]any {
	src, ok := raw.(map[string]any)
	if !ok || src == nil {
		return nil
	}
	o := copyObject(src)

	for alt, canonical := range camelKeys {
		v, ok := o[alt]
		if !ok {
			continue
		}
		if _, present := o[canonical]; !present && v != nil {
			o[canonical] = v
		}
		delete(o, alt)
	}

	if s, ok := o["api_version"].(string); !ok || strings.TrimSpace(s) == "" {
		o["api_version"] = APIVersion
	}
	// A mismatched version is overwritten rather than rejected.
	o["schema_version"] = SchemaVersion

	npc := copyObject(o["npc"])
	defaultString(npc, "id", "unknown")
	defaultString(npc, "name", "NPC")
	defaultString(npc, "role", "npc")
	o["npc"] = npc

	st := copyObject(o["state"])
	defaultString(st, "node", DefaultNode)
	st["flags"] = stringList(st["flags"])
	o["state"] = st

	if s, ok := o["intent"].(string); !ok || strings.TrimSpace(s) == "" {
		o["intent"] = IntentFallback
	}
	if s, ok := o["tone"].(string); !ok || strings.TrimSpace(s) == "" {
		o["tone"] = DefaultTone
	}
	// Identifiers are stamped by the orchestrator; only their type matters here.
	defaultString(o, "session_id", "")
	defaultString(o, "message_id", "")

	o["reply"] = stringify(o["reply"])
	o["confidence"] = confidence(o["confidence"])
	o["facts_used"] = stringList(o["facts_used"])

	if choices, present := o["choices"]; present {
		if list, ok := choices.([]any); ok {
			o["choices"] = wellFormedChoices(list)
		} else {
			delete(o, "choices")
		}
	}

	prune(o, "")
	prune(npc, "npc")
	prune(st, "state")
	return o
}

func copyObject(v any) map[string]any {
	src, ok := v.(map[string]any)
	out := make(map[string]any, len(src))
	if !ok {
		return out
	}
	for k, vv := range src {
		out[k] = vv
	}
	return out
}

func defaultString(o map[string]any, key, def string) {
	if _, ok := o[key].(string); !ok {
		o[key] = def
	}
}

// stringList accepts a bare string or an array (keeping only string elements).
func stringList(v any) []any {
	out := []any{}
	switch x := v.(type) {
	case string:
		out = append(out, x)
	case []string:
		for _, s := range x {
			out = append(out, s)
		}
	case []any:
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func confidence(v any) float64 {
	f, ok := toNumber(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultConfidence
	}
	return math.Max(0, math.Min(1, f))
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// wellFormedChoices drops entries without a string id and label, or with a
// hint that is not a string. It does not repair them.
func wellFormedChoices(list []any) []any {
	out := make([]any, 0, len(list))
	for _, item := range list {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := c["id"].(string); !ok {
			continue
		}
		if _, ok := c["label"].(string); !ok {
			continue
		}
		if hint, present := c["hint"]; present {
			if _, ok := hint.(string); !ok {
				continue
			}
		}
		entry := copyObject(c)
		prune(entry, "choices")
		out = append(out, entry)
	}
	return out
}

func prune(o map[string]any, path string) {
	keep := make(map[string]struct{})
	for _, k := range Keys(path) {
		keep[k] = struct{}{}
	}
	for k := range o {
		if _, ok := keep[k]; !ok {
			delete(o, k)
		}
	}
}
