package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a closed JSON schema: every object forbids extra properties
// and lists all of its properties as required.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	closeObjects(schemaObj)
	delete(schemaObj, "$schema")
	return schemaObj
}

// SchemaJSON is GenerateSchema rendered as indented JSON, for embedding in prompts.
func SchemaJSON[T any]() string {
	b, err := json.MarshalIndent(GenerateSchema[T](), "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func closeObjects(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false
		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok && len(properties) > 0 {
			required := make([]string, 0, len(properties))
			for name := range properties {
				required = append(required, name)
			}
			sort.Strings(required)
			schema[requiredKey] = required
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				closeObjects(propMap)
			}
		}
	}
	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		closeObjects(items)
	}
	if additional, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		closeObjects(additional)
	}
}
