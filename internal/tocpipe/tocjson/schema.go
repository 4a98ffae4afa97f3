package tocjson

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		names := []string{"toc_items", "check_results", "mode_classification"}
		compiled = make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("tocjson: failed to read schema %s: %w", name, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("tocjson: failed to register schema %s: %w", name, err)
				return
			}
			schema, err := compiler.Compile(name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("tocjson: failed to compile schema %s: %w", name, err)
				return
			}
			compiled[name] = schema
		}
	})
	return compiled, compileErr
}

// ValidateAgainst validates raw JSON against one of the pipeline's embedded
// response schemas ("toc_items", "check_results", "mode_classification"),
// the way internal/providers/structured_output.go validates structured
// model output before the caller trusts it.
func ValidateAgainst(schemaName string, raw json.RawMessage) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	schema, ok := all[schemaName]
	if !ok {
		return fmt.Errorf("tocjson: unknown schema %q", schemaName)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("tocjson: failed to decode JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("tocjson: model output does not match %s schema: %w", schemaName, err)
	}
	return nil
}
