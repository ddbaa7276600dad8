package llm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled holds compiled schemas keyed by name and definition digest, so a
// persona schema and a test schema sharing a name never collide.
var compiled sync.Map // map[string]*jsonschema.Schema

// validateResponse checks raw oracle output against schema. A nil schema
// accepts anything. Failures are *ErrInvalidResponse and are never retried.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidResponse(raw, errors.New("empty response"))
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return invalidResponse(raw, fmt.Errorf("invalid JSON: %w", err))
	}

	sch, err := compileSchema(schema)
	if err != nil {
		return invalidResponse(raw, fmt.Errorf("compile schema %q: %w", schema.Name, err))
	}
	if err := sch.Validate(doc); err != nil {
		return invalidResponse(raw, fmt.Errorf("%s: %w", schema.Name, err))
	}
	return nil
}

func invalidResponse(raw json.RawMessage, err error) *ErrInvalidResponse {
	return &ErrInvalidResponse{Content: raw, Err: err}
}

func compileSchema(schema *Schema) (*jsonschema.Schema, error) {
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}
	sum := sha256.Sum256(def)
	key := schema.Name + "@" + hex.EncodeToString(sum[:8])
	if v, ok := compiled.Load(key); ok {
		return v.(*jsonschema.Schema), nil
	}

	// The compiler wants a decoded document, not bytes.
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	url := "mem://" + key + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	v, _ := compiled.LoadOrStore(key, sch)
	return v.(*jsonschema.Schema), nil
}
