package toolserver

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles each tool's JSON Schema once and reuses it for every
// call, keyed by tool name. Compiling a jsonschema.Schema is not free and
// every call is otherwise identical input.
type schemaCache struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{cache: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compile(toolName, schemaJSON string) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if schema, ok := c.cache[toolName]; ok {
		return schema, nil
	}

	url := "mem://tools/" + toolName + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	c.cache[toolName] = schema
	return schema, nil
}

// validate decodes rawArgs generically and checks it against the tool's
// cached schema, independent of how the handler itself decodes rawArgs into
// a typed params struct.
func (c *schemaCache) validate(toolName, schemaJSON string, rawArgs json.RawMessage) error {
	schema, err := c.compile(toolName, schemaJSON)
	if err != nil {
		return err
	}

	var instance any
	if len(rawArgs) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(rawArgs, &instance); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
