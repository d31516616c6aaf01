package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/telhawk-systems/etl-central-square/internal/apperr"
)

// Validator validates values against schema documents. Compiled schemas are
// cached by their JSON encoding, so a Validator is safe to share.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
	seq   int
}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks value against doc. Failures wrap apperr.ErrValidation.
func (v *Validator) Validate(doc Document, value any) error {
	compiled, err := v.compile(doc)
	if err != nil {
		return fmt.Errorf("schema compilation error: %w", err)
	}

	normalized, err := toJSONValue(value)
	if err != nil {
		return apperr.Validation("value is not JSON encodable", err)
	}

	if err := compiled.Validate(normalized); err != nil {
		return apperr.Validation("value does not match schema", err)
	}
	return nil
}

func (v *Validator) compile(doc Document) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(raw)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	v.seq++
	url := "etl://schema/" + strconv.Itoa(v.seq)

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// toJSONValue round-trips value through JSON so Go-typed inputs (config maps,
// structs) validate the same way as decoded request bodies.
func toJSONValue(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}
