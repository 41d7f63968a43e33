// Package tools provides concrete ToolDescriptor implementations that
// exercise the runtime end to end: read_file, write_file,
// run_shell_command, and save_memory.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// ReflectSchema generates a JSON-schema map from a Go args struct.
func ReflectSchema(args any) map[string]any {
	r := &jsonschema.Reflector{
		FieldNameTag:              "json",
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(args)
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

var (
	compileMu    sync.Mutex
	compileCache = map[string]*jsonschemav5.Schema{}
)

// compileSchema compiles (and caches) a params schema for validation.
func compileSchema(id string, schema map[string]any) (*jsonschemav5.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()
	if cached, ok := compileCache[id]; ok {
		return cached, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tools: encode schema %q: %w", id, err)
	}
	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource(id, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tools: add schema resource %q: %w", id, err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("tools: compile schema %q: %w", id, err)
	}
	compileCache[id] = compiled
	return compiled, nil
}

// ValidateArgs validates args (already decoded to a plain map) against a
// paramsSchema; each tool descriptor's ValidateParams closure calls it.
func ValidateArgs(toolName string, schema map[string]any, args map[string]any) error {
	compiled, err := compileSchema(toolName, schema)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tools: encode args: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("tools: decode args: %w", err)
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("tools: %s: invalid params: %w", toolName, err)
	}
	return nil
}
