package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	domainerrors "github.com/emlua-dev/emlua/domain/errors"
	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://emlua.dev/schemas/config.json"

// Schema returns the JSON schema (draft 2020-12) of the configuration file.
func Schema() ([]byte, error) {
	reflector := invopop.Reflector{
		ExpandedStruct: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "emlua configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	data, err := Schema()
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	sch, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid config schema: %w", err)
	}
	return sch, nil
})

// ValidateDocument checks a raw YAML document against Schema.
// An empty document is valid.
func ValidateDocument(data []byte) error {
	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &domainerrors.ConfigError{Err: err}
	}

	// The schema validator expects the value shapes encoding/json produces.
	raw, err := json.Marshal(doc)
	if err != nil {
		return &domainerrors.ConfigError{Err: fmt.Errorf("failed to prepare validation object: %w", err)}
	}
	var obj any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &domainerrors.ConfigError{Err: fmt.Errorf("failed to prepare validation object: %w", err)}
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			return &domainerrors.ConfigError{
				Field: strings.ReplaceAll(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", "."),
				Err:   errors.New(leaf.Message),
			}
		}
		return &domainerrors.ConfigError{Err: err}
	}
	return nil
}
