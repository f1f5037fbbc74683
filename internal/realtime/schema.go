// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"encoding/json"

	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Payload schemas for kinds whose consumers rely on an identifier.
var payloadSchemas = map[Kind]string{
	KindSanction: `{
		"type": "object",
		"required": ["sanction_id"],
		"properties": {
			"sanction_id": {"type": ["string", "integer"]},
			"message": {"type": "string"}
		}
	}`,
	KindPayment: `{
		"type": "object",
		"required": ["payment_id"],
		"properties": {
			"payment_id": {"type": ["string", "integer"]},
			"amount": {"type": ["number", "string"]},
			"message": {"type": "string"}
		}
	}`,
}

type payloadValidator struct {
	schemas map[Kind]*jschema.Schema
}

func newPayloadValidator() (*payloadValidator, error) {
	c := jschema.NewCompiler()
	v := &payloadValidator{schemas: make(map[Kind]*jschema.Schema, len(payloadSchemas))}
	for kind, src := range payloadSchemas {
		var doc any
		if err := json.Unmarshal([]byte(src), &doc); err != nil {
			return nil, oops.Code(CodeInvalidSchema).With("kind", string(kind)).Wrap(err)
		}
		url := string(kind) + ".schema.json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code(CodeInvalidSchema).With("kind", string(kind)).Wrap(err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code(CodeInvalidSchema).With("kind", string(kind)).Wrap(err)
		}
		v.schemas[kind] = sch
	}
	return v, nil
}

// validate checks data against the kind's schema. Kinds without a schema
// always pass.
func (v *payloadValidator) validate(kind Kind, data map[string]any) error {
	sch, ok := v.schemas[kind]
	if !ok {
		return nil
	}
	if err := sch.Validate(any(data)); err != nil {
		return oops.Code(CodeInvalidPayload).With("kind", string(kind)).Wrap(err)
	}
	return nil
}
