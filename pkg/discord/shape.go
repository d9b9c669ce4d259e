package discord

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	schemagen "github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonschema"
)

// Payload shapes are validated against a JSON Schema reflected from the Go
// type before they are unmarshalled, so that a payload missing a required
// field is rejected instead of decoding to zero values. A field is required
// unless its json tag has omitempty; pointer, interface and raw fields
// additionally accept null.

var rawMessageType = reflect.TypeFor[json.RawMessage]()

type shapeSchema struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var shapeSchemas sync.Map // reflect.Type -> *shapeSchema

func schemaFor(t reflect.Type) (*jsonschema.Schema, error) {
	v, _ := shapeSchemas.LoadOrStore(t, &shapeSchema{})
	s := v.(*shapeSchema)
	s.once.Do(func() {
		s.schema, s.err = compileShape(t)
	})
	return s.schema, s.err
}

func compileShape(t reflect.Type) (*jsonschema.Schema, error) {
	r := &schemagen.Reflector{
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		Mapper: func(t reflect.Type) *schemagen.Schema {
			if t == rawMessageType {
				return &schemagen.Schema{}
			}
			return nil
		},
	}
	gen := r.ReflectFromType(t)

	nullable := make(map[string]map[string]bool)
	collectNullable(t, nullable, make(map[reflect.Type]bool))
	for name, def := range gen.Definitions {
		allowNull(def, nullable[name])
	}

	raw, err := json.Marshal(gen)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", t.Name(), err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t.Name(), err)
	}
	return compiled, nil
}

// collectNullable records, per struct name, the json properties that may
// be null or absent.
func collectNullable(t reflect.Type, out map[string]map[string]bool, seen map[reflect.Type]bool) {
	for t != rawMessageType && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice ||
		t.Kind() == reflect.Array || t.Kind() == reflect.Map) {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || seen[t] {
		return
	}
	seen[t] = true

	props := make(map[string]bool)
	out[t.Name()] = props
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		k := f.Type.Kind()
		if k == reflect.Pointer || k == reflect.Interface || f.Type == rawMessageType ||
			strings.Contains(opts, "omitempty") {
			props[name] = true
		}
		collectNullable(f.Type, out, seen)
	}
}

func allowNull(def *schemagen.Schema, props map[string]bool) {
	if def == nil || def.Properties == nil || len(props) == 0 {
		return
	}
	for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
		if props[pair.Key] {
			pair.Value = &schemagen.Schema{
				AnyOf: []*schemagen.Schema{pair.Value, {Type: "null"}},
			}
		}
	}
}

// decodeShape validates raw against T's schema and unmarshals it.
func decodeShape[T any](raw json.RawMessage) (*T, error) {
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("payload is null")
	}
	schema, err := schemaFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if result := schema.Validate(inst); !result.IsValid() {
		return nil, fmt.Errorf("%s", result.Error())
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
