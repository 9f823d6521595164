package convert

import (
	"encoding/json"
	"fmt"
	"github.com/francoispqt/gojay"
	"reflect"
	"sigs.k8s.io/yaml"
)

// Deserializer is the contract a serializer configured on a Target must satisfy
//
// Deserialize must return a value of type t (or an error)
type Deserializer interface {
	// Deserialize parses text into a new value of type t
	Deserialize(text string, t reflect.Type) (any, error)
}

// CapabilityChecker is optionally implemented by a Deserializer to declare which types it handles
//
// when not implemented, a serializer is assumed to handle any type that is neither primitive nor an interface
type CapabilityChecker interface {
	// CanDeserialize reports whether values of type t can be deserialized
	CanDeserialize(t reflect.Type) bool
}

// Binary is a general purpose binary wrapper
type Binary []byte

// JSONSerializer deserializes JSON text
//
// targets whose pointer implements gojay.UnmarshalerJSONObject are decoded with gojay, all others with encoding/json
type JSONSerializer struct{}

var _ Deserializer = JSONSerializer{}

// Deserialize decodes JSON text into a new value of type t
func (JSONSerializer) Deserialize(text string, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	var err error
	if obj, ok := ptr.Interface().(gojay.UnmarshalerJSONObject); ok {
		err = gojay.UnmarshalJSONObject([]byte(text), obj)
	} else {
		err = json.Unmarshal([]byte(text), ptr.Interface())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid json for %s: %v", ErrMalformedValue, t, err)
	}
	return ptr.Elem().Interface(), nil
}

// YAMLSerializer deserializes YAML (or JSON) text into structs, maps and slices
type YAMLSerializer struct{}

var (
	_ Deserializer      = YAMLSerializer{}
	_ CapabilityChecker = YAMLSerializer{}
)

// CanDeserialize reports true for struct, map and slice types
func (YAMLSerializer) CanDeserialize(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// Deserialize decodes YAML text into a new value of type t
func (YAMLSerializer) Deserialize(text string, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := yaml.Unmarshal([]byte(text), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("%w: invalid yaml for %s: %v", ErrMalformedValue, t, err)
	}
	return ptr.Elem().Interface(), nil
}
