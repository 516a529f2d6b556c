package action

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Result is a handler's plain result object before envelope wrapping.
type Result map[string]any

// encodeResult serializes a result to JSON with every numeric and date value
// coerced to a string. The upstream dispatcher parses the body as text and
// expects a deterministic wire shape, so native number encodings are off
// limits here.
func encodeResult(result Result) (string, error) {
	encoded, err := json.Marshal(stringify(map[string]any(result)))
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(encoded), nil
}

func stringify(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = stringify(item)
		}
		return out
	case Result:
		return stringify(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stringify(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stringify(item)
		}
		return out
	case []Result:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stringify(item)
		}
		return out
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
