package segmentprops

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/janelia-flyem/ngstate/ngstate"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "neuroglancer segment properties",
  "type": "object",
  "required": ["@type", "inline"],
  "properties": {
    "@type": {"const": "neuroglancer_segment_properties"},
    "inline": {
      "type": "object",
      "required": ["ids", "properties"],
      "properties": {
        "ids": {
          "type": "array",
          "items": {"type": "string", "pattern": "^[0-9]+$"}
        },
        "properties": {
          "type": "array",
          "items": {"$ref": "#/definitions/property"}
        }
      }
    }
  },
  "definitions": {
    "property": {
      "type": "object",
      "required": ["id", "type", "values"],
      "properties": {
        "id": {"type": "string"},
        "type": {"enum": ["label", "description", "string", "number", "tags"]},
        "description": {"type": "string"},
        "values": {"type": "array"}
      },
      "allOf": [
        {
          "if": {"properties": {"type": {"enum": ["label", "description", "string"]}}},
          "then": {"properties": {"values": {"items": {"type": "string"}}}}
        },
        {
          "if": {"properties": {"type": {"const": "number"}}},
          "then": {
            "required": ["data_type"],
            "properties": {
              "data_type": {"enum": ["uint8", "int8", "uint16", "int16", "uint32", "int32", "float32"]},
              "values": {"items": {"type": "number"}}
            }
          }
        },
        {
          "if": {"properties": {"type": {"const": "tags"}}},
          "then": {
            "required": ["tags"],
            "properties": {
              "tags": {"type": "array", "items": {"type": "string", "pattern": "^[^# ][^ ]*$"}},
              "tag_descriptions": {"type": "array", "items": {"type": "string"}},
              "values": {"items": {"type": "array", "items": {"type": "integer", "minimum": 0}}}
            }
          }
        }
      ]
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("segment_properties.json", schemaJSON)
	})
	return schema, schemaErr
}

// Validate checks a document, e.g., the result of ToDict, against the segment
// properties schema.
func Validate(doc interface{}) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("bad segment properties schema: %v", err)
	}
	// The validator only understands plain decoded JSON values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var plain interface{}
	if err := json.Unmarshal(b, &plain); err != nil {
		return err
	}
	if err := sch.Validate(plain); err != nil {
		return fmt.Errorf("%w: invalid segment properties: %v", ngstate.ErrValidation, err)
	}
	return nil
}
