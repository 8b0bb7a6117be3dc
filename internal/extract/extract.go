// Package extract pulls a reading out of a JSON response body.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/speedwagon-io/co2hook/internal/model"
)

// Reading parses body as a JSON object and converts the string value stored
// under the top-level key into a Reading.
func Reading(body []byte, key string) (model.Reading, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, model.NewError(model.CategoryParse, model.ErrJSON, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return 0, model.NewError(model.CategoryParse, model.ErrJSON, fmt.Errorf("top-level value is %s, not an object", typeName(doc)))
	}

	raw, exists := obj[key]
	if !exists {
		return 0, model.NewError(model.CategoryParse, model.ErrMissingKey, fmt.Errorf("key %q", key))
	}

	str, ok := raw.(string)
	if !ok {
		return 0, model.NewError(model.CategoryParse, model.ErrWrongType, fmt.Errorf("key %q holds %s", key, typeName(raw)))
	}

	// A single leading plus sign is a valid unsigned literal.
	v, err := strconv.ParseUint(strings.TrimPrefix(str, "+"), 10, 16)
	if err != nil {
		return 0, model.NewError(model.CategoryParse, model.ErrNumeric, err)
	}

	return model.Reading(v), nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
