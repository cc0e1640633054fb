package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema reflects Config into a JSON schema for editor completion of config
// files.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(new(Config))
	// Config files may not carry unknown keys.
	s.AdditionalProperties = jsonschema.FalseSchema
	return s
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

// PropertyNames lists the top-level schema properties in declaration order.
func PropertyNames() []string {
	s := Schema()
	if s == nil || s.Properties == nil {
		return nil
	}
	var names []string
	for el := s.Properties.Oldest(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}
