package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape describes how a reply payload was interpreted.
type Shape int

const (
	ShapeMissing Shape = iota // no usable first element
	ShapeString               // {"data": ["text"]}
	ShapeNested               // {"data": [["text"]]}
	ShapeOther                // anything else, stringified
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeNested:
		return "nested"
	case ShapeOther:
		return "other"
	default:
		return "missing"
	}
}

type predictResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ParseReply extracts the reply text from a prediction payload. The first
// element of data may be a string or a one-element list holding a string;
// any other value is returned in its JSON form with ShapeOther.
func ParseReply(body []byte) (string, Shape, error) {
	var payload predictResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ShapeMissing, fmt.Errorf("decode reply: %w", err)
	}
	if len(payload.Data) == 0 {
		return "", ShapeMissing, nil
	}

	raw := payload.Data[0]
	var first any
	if err := json.Unmarshal(raw, &first); err != nil {
		return "", ShapeMissing, fmt.Errorf("decode reply element: %w", err)
	}

	switch v := first.(type) {
	case nil:
		return "", ShapeMissing, nil
	case bool:
		if !v {
			return "", ShapeMissing, nil
		}
	case float64:
		if v == 0 {
			return "", ShapeMissing, nil
		}
	case string:
		if v == "" {
			return "", ShapeMissing, nil
		}
		return strings.TrimSpace(v), ShapeString, nil
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimSpace(s), ShapeNested, nil
			}
		}
	}

	return strings.TrimSpace(string(raw)), ShapeOther, nil
}
