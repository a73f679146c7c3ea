package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaFor infers a JSON Schema from the Go type T, suitable for
// ScrapeRequest.ExtractionSchema.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	return jsonschema.For[T](nil)
}

func schemaJSON(schema any) (json.RawMessage, error) {
	switch v := schema.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	case string:
		return json.RawMessage(v), nil
	}

	data, err := json.Marshal(schema)

	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	return data, nil
}

func compileSchema(schema any) (*validator.Schema, error) {
	data, err := schemaJSON(schema)

	if err != nil {
		return nil, err
	}

	if !json.Valid(data) {
		return nil, errors.New("schema is not valid json")
	}

	compiler := validator.NewCompiler()

	if err := compiler.AddResource("extraction.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}

	s, err := compiler.Compile("extraction.json")

	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return s, nil
}

// ValidateExtraction checks extracted JSON, typically ScrapeResult.ExtractedJSON,
// against the schema that was sent with the request.
func ValidateExtraction(schema any, data []byte) error {
	s, err := compileSchema(schema)

	if err != nil {
		return err
	}

	var v any

	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode extraction: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: extraction does not match schema: %w", ErrValidation, err)
	}

	return nil
}
