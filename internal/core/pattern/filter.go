package pattern

import (
	"encoding/json"
	"strings"
)

// EvaluateFilter evaluates a CallbackConfiguration.filter_expression against
// a parsed JSON payload:
//
//   - Empty/absent expression → always match.
//   - "path=value" → dot-separated traversal from the payload root; missing
//     segment or non-object traversal → no match; string terminal nodes
//     compare by string equality, others by their textual JSON form.
//   - Any other syntax → fail-open (always match).
func EvaluateFilter(expression string, payload map[string]interface{}) bool {
	if expression == "" {
		return true
	}

	idx := strings.Index(expression, "=")
	if idx <= 0 {
		// Not the "path=value" shape — fail open.
		return true
	}
	path := expression[:idx]
	value := expression[idx+1:]

	segments := strings.Split(path, ".")
	var cur interface{} = map[string]interface{}(payload)
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return false
		}
		next, exists := m[seg]
		if !exists {
			return false
		}
		cur = next
	}

	if s, ok := cur.(string); ok {
		return s == value
	}

	b, err := json.Marshal(cur)
	if err != nil {
		return false
	}
	return string(b) == value
}
