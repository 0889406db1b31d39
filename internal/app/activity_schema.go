package app

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hylla/kundkoll/internal/domain"
)

// activityDataSchemas constrains the free-form data of typed activities.
// Unknown keys stay allowed; note and other carry no schema.
var activityDataSchemas = map[domain.ActivityType]string{
	domain.ActivityTypeCall: `{
		"type": "object",
		"properties": {
			"duration_minutes": {"type": "integer", "minimum": 0},
			"direction": {"enum": ["inbound", "outbound"]},
			"outcome": {"type": "string", "maxLength": 200}
		}
	}`,
	domain.ActivityTypeEmail: `{
		"type": "object",
		"properties": {
			"subject": {"type": "string", "maxLength": 300},
			"direction": {"enum": ["inbound", "outbound"]},
			"thread_id": {"type": "string", "minLength": 1}
		}
	}`,
	domain.ActivityTypeMeeting: `{
		"type": "object",
		"properties": {
			"location": {"type": "string", "maxLength": 200},
			"duration_minutes": {"type": "integer", "minimum": 0},
			"attendees": {"type": "array", "items": {"type": "string", "minLength": 1}}
		}
	}`,
	domain.ActivityTypeTask: `{
		"type": "object",
		"properties": {
			"task_id": {"type": "string", "minLength": 1},
			"project_id": {"type": "string", "minLength": 1}
		}
	}`,
}

var compiledActivitySchemas = sync.OnceValues(func() (map[domain.ActivityType]*schemaNode, error) {
	out := make(map[domain.ActivityType]*schemaNode, len(activityDataSchemas))
	for typ, raw := range activityDataSchemas {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("decode %s data schema: %w", typ, err)
		}
		node, err := compileSchemaNode(decoded, "$")
		if err != nil {
			return nil, fmt.Errorf("compile %s data schema: %w", typ, err)
		}
		out[typ] = node
	}
	return out, nil
})

// validateActivityData checks data against the schema of typ. Values are
// normalized through JSON so Go ints and decoded float64s validate alike.
func validateActivityData(typ domain.ActivityType, data map[string]any) error {
	schemas, err := compiledActivitySchemas()
	if err != nil {
		return err
	}
	node, ok := schemas[typ]
	if !ok || len(data) == 0 {
		return nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidActivityData, DataValidationError{Path: "$", Message: err.Error()})
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidActivityData, DataValidationError{Path: "$", Message: err.Error()})
	}
	if err := node.validate(decoded, "$"); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidActivityData, typ, err)
	}
	return nil
}

// DataValidationError names the offending path inside activity data.
type DataValidationError struct {
	Path    string
	Message string
}

func (e DataValidationError) Error() string {
	path := strings.TrimSpace(e.Path)
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("%s: %s", path, e.Message)
}

// schemaNode is one compiled node of the JSON Schema subset used above:
// type, properties, enum, items, minLength, maxLength, minimum.
type schemaNode struct {
	typ        string
	properties map[string]*schemaNode
	enum       []any
	items      *schemaNode
	minLength  *int
	maxLength  *int
	minimum    *float64
}

func compileSchemaNode(raw any, path string) (*schemaNode, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, DataValidationError{Path: path, Message: "schema must be an object"}
	}
	node := &schemaNode{properties: map[string]*schemaNode{}}

	if rawType, ok := obj["type"]; ok {
		text, ok := rawType.(string)
		if !ok {
			return nil, DataValidationError{Path: path + ".type", Message: "must be a string"}
		}
		node.typ = strings.ToLower(strings.TrimSpace(text))
		switch node.typ {
		case "object", "array", "string", "number", "integer", "boolean":
		default:
			return nil, DataValidationError{Path: path + ".type", Message: fmt.Sprintf("unsupported type %q", node.typ)}
		}
	}
	if rawProps, ok := obj["properties"]; ok {
		props, ok := rawProps.(map[string]any)
		if !ok {
			return nil, DataValidationError{Path: path + ".properties", Message: "must be an object"}
		}
		for key, child := range props {
			compiled, err := compileSchemaNode(child, path+".properties."+key)
			if err != nil {
				return nil, err
			}
			node.properties[key] = compiled
		}
	}
	if rawEnum, ok := obj["enum"]; ok {
		list, ok := rawEnum.([]any)
		if !ok {
			return nil, DataValidationError{Path: path + ".enum", Message: "must be an array"}
		}
		node.enum = slices.Clone(list)
	}
	if rawItems, ok := obj["items"]; ok {
		compiled, err := compileSchemaNode(rawItems, path+".items")
		if err != nil {
			return nil, err
		}
		node.items = compiled
	}
	for keyword, dst := range map[string]**int{"minLength": &node.minLength, "maxLength": &node.maxLength} {
		rawBound, ok := obj[keyword]
		if !ok {
			continue
		}
		bound, ok := rawBound.(float64)
		if !ok || bound < 0 || bound != float64(int(bound)) {
			return nil, DataValidationError{Path: path + "." + keyword, Message: "must be a non-negative integer"}
		}
		v := int(bound)
		*dst = &v
	}
	if rawMin, ok := obj["minimum"]; ok {
		v, ok := rawMin.(float64)
		if !ok {
			return nil, DataValidationError{Path: path + ".minimum", Message: "must be a number"}
		}
		node.minimum = &v
	}
	return node, nil
}

func (n *schemaNode) validate(value any, path string) error {
	if n == nil {
		return nil
	}
	if len(n.enum) > 0 && !slices.ContainsFunc(n.enum, func(candidate any) bool { return reflect.DeepEqual(candidate, value) }) {
		return DataValidationError{Path: path, Message: "value is not in enum set"}
	}

	switch n.typ {
	case "", "object":
		obj, ok := value.(map[string]any)
		if !ok {
			if n.typ == "" {
				return nil
			}
			return DataValidationError{Path: path, Message: "expected object"}
		}
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := n.properties[key].validate(obj[key], path+"."+key); err != nil {
				return err
			}
		}
		return nil
	case "array":
		items, ok := value.([]any)
		if !ok {
			return DataValidationError{Path: path, Message: "expected array"}
		}
		for idx, item := range items {
			if err := n.items.validate(item, fmt.Sprintf("%s[%d]", path, idx)); err != nil {
				return err
			}
		}
		return nil
	case "string":
		text, ok := value.(string)
		if !ok {
			return DataValidationError{Path: path, Message: "expected string"}
		}
		if n.minLength != nil && len(text) < *n.minLength {
			return DataValidationError{Path: path, Message: fmt.Sprintf("string length must be >= %d", *n.minLength)}
		}
		if n.maxLength != nil && len(text) > *n.maxLength {
			return DataValidationError{Path: path, Message: fmt.Sprintf("string length must be <= %d", *n.maxLength)}
		}
		return nil
	case "number", "integer":
		number, ok := value.(float64)
		if !ok || (n.typ == "integer" && number != float64(int64(number))) {
			return DataValidationError{Path: path, Message: "expected " + n.typ}
		}
		if n.minimum != nil && number < *n.minimum {
			return DataValidationError{Path: path, Message: fmt.Sprintf("must be >= %v", *n.minimum)}
		}
		return nil
	default:
		if _, ok := value.(bool); !ok {
			return DataValidationError{Path: path, Message: "expected boolean"}
		}
		return nil
	}
}
