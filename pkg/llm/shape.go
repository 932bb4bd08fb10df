package llm

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Shape declares the structural contract of a schema-constrained completion.
type Shape struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// ShapeFor derives a Shape from the Go type T.
func ShapeFor[T any](name, description string) (*Shape, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	return &Shape{
		Name:        name,
		Description: description,
		Schema:      s,
	}, nil
}

// MustShapeFor is ShapeFor that panics on error. Intended for package-level
// shape declarations over well-formed types.
func MustShapeFor[T any](name, description string) *Shape {
	s, err := ShapeFor[T](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode unmarshals model-produced JSON into v. If plain parsing fails with
// a syntax error, the text is run through jsonrepair once and parsed again;
// models routinely emit trailing commas, unquoted keys, or truncated tails.
func Decode(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(data)
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}
