package protocol

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

const schemaBase = "https://countercraft.ai/schemas/"

var (
	ruleSchema  = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("rule.schema.json") })
	eventSchema = sync.OnceValues(func() (*jsonschema.Schema, error) { return compileSchema("event.schema.json") })
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s, err := c.Compile(schemaBase + name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateRule checks a persisted rule record before it is merged onto the
// kind defaults. Unknown fields are allowed.
func ValidateRule(raw []byte) error {
	s, err := ruleSchema()
	if err != nil {
		return err
	}
	v, err := decodeAny(raw)
	if err != nil {
		return &DecodeError{Code: ErrProtoBadRequest, Err: err}
	}
	if err := s.Validate(v); err != nil {
		return &DecodeError{Code: ErrSchema, Err: err}
	}
	return nil
}

// DecodeEvent validates and decodes one event line.
func DecodeEvent(line []byte) (EventMsg, error) {
	var m EventMsg
	s, err := eventSchema()
	if err != nil {
		return m, err
	}
	v, err := decodeAny(line)
	if err != nil {
		return m, &DecodeError{Code: ErrProtoBadRequest, Err: err}
	}
	if base, ok := v.(map[string]any); ok {
		if typ, _ := base["type"].(string); !isEventType(typ) {
			return m, &DecodeError{Code: ErrUnknownType, Err: fmt.Errorf("type %q", typ)}
		}
	}
	if err := s.Validate(v); err != nil {
		return m, &DecodeError{Code: ErrSchema, Err: err}
	}
	if err := json.Unmarshal(line, &m); err != nil {
		return m, &DecodeError{Code: ErrProtoBadRequest, Err: err}
	}
	return m, nil
}

func isEventType(t string) bool {
	switch t {
	case TypeEntityDeath, TypeBlockBreak, TypeBlockPlace, TypeContainerOpen, TypePlayerTick:
		return true
	default:
		return false
	}
}
