package ai

import (
	"encoding/json"

	"github.com/getkin/kin-openapi/openapi3"
)

// maxSchemaDepth bounds recursion through self-referencing schemas.
const maxSchemaDepth = 10

// SchemaJSON converts an OpenAPI schema to a standalone JSON Schema with
// all references inlined.
func SchemaJSON(s *openapi3.Schema) (json.RawMessage, error) {
	return json.Marshal(toJSONSchema(s, 0))
}

func toJSONSchema(s *openapi3.Schema, depth int) map[string]any {
	out := map[string]any{}
	if s == nil || depth > maxSchemaDepth {
		return out
	}

	if s.Type != nil && len(*s.Type) > 0 {
		types := append([]string(nil), (*s.Type)...)
		if s.Nullable {
			types = append(types, "null")
		}
		if len(types) == 1 {
			out["type"] = types[0]
		} else {
			out["type"] = types
		}
	}
	if s.Format != "" {
		out["format"] = s.Format
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Pattern != "" {
		out["pattern"] = s.Pattern
	}
	if s.Min != nil {
		out["minimum"] = *s.Min
	}
	if s.Max != nil {
		out["maximum"] = *s.Max
	}
	if s.MinLength > 0 {
		out["minLength"] = s.MinLength
	}
	if s.MaxLength != nil {
		out["maxLength"] = *s.MaxLength
	}
	if s.MinItems > 0 {
		out["minItems"] = s.MinItems
	}
	if s.MaxItems != nil {
		out["maxItems"] = *s.MaxItems
	}

	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, ref := range s.Properties {
			if ref != nil {
				props[name] = toJSONSchema(ref.Value, depth+1)
			}
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = toJSONSchema(s.Items.Value, depth+1)
	}
	for key, refs := range map[string]openapi3.SchemaRefs{"allOf": s.AllOf, "oneOf": s.OneOf, "anyOf": s.AnyOf} {
		if len(refs) == 0 {
			continue
		}
		list := make([]any, 0, len(refs))
		for _, ref := range refs {
			if ref != nil {
				list = append(list, toJSONSchema(ref.Value, depth+1))
			}
		}
		out[key] = list
	}
	return out
}
