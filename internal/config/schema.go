// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID identifies the config file schema.
const SchemaID = "https://courtside.app/schemas/config.schema.json"

// CodeSchemaViolation is returned by ValidateFile.
const CodeSchemaViolation = "CONFIG_SCHEMA_VIOLATION"

var (
	compileOnce sync.Once
	compiled    *jschema.Schema
	compileErr  error
)

// GenerateSchema returns the JSON Schema for config files.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		// Defaults are filled in by Load, so a file may set any subset.
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Courtside agent configuration"
	schema.Description = "Schema for courtside config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateFile checks YAML config data against the schema.
func ValidateFile(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeSchemaViolation).Wrapf(err, "invalid YAML")
	}
	if doc == nil {
		// An empty file keeps every default.
		return nil
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so YAML ints and maps take JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return oops.Code(CodeSchemaViolation).Wrapf(err, "config is not JSON-compatible")
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return oops.Code(CodeSchemaViolation).Wrap(err)
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code(CodeSchemaViolation).Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			compileErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			compileErr = oops.Wrapf(err, "parse schema")
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(SchemaID, doc); err != nil {
			compileErr = oops.Wrapf(err, "add schema resource")
			return
		}
		compiled, compileErr = c.Compile(SchemaID)
	})
	return compiled, compileErr
}
