package fakeserver

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed fixtures/request-schema.json
var requestSchema []byte

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	schemaError    error
)

// validateRequestDocument checks that a request body is a single resource document
// with identity kept out of the attributes and well formed relationship data
func validateRequestDocument(body []byte) error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if schemaError = compiler.AddResource("request-schema.json", bytes.NewReader(requestSchema)); schemaError != nil {
			return
		}

		compiledSchema, schemaError = compiler.Compile("request-schema.json")
	})

	if schemaError != nil {
		return fmt.Errorf("schema compilation error: %w", schemaError)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("request body is not valid json: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("invalid document at %s: %s", leafLocation(validationErr), validationErr.Message)
		}
		return err
	}

	return nil
}

func leafLocation(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}

	if err.InstanceLocation == "" {
		return "/"
	}

	return err.InstanceLocation
}
