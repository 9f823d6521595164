package convert

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoConversion is returned (wrapped in a NoConversionError) when no strategy exists for a source/target pair
	ErrNoConversion = errors.New("no conversion found")
	// ErrMalformedValue is returned when a raw value cannot be converted by the resolved strategy
	ErrMalformedValue = errors.New("malformed value")
	// ErrRangeViolation is returned when a duration falls outside the bound of a time-of-day target
	ErrRangeViolation = errors.New("value out of range")
	// ErrSerializerContract is returned when a configured serializer lacks the deserialization contract
	ErrSerializerContract = errors.New("serializer contract violation")
	// ErrArgument is returned by helpers when an argument is not acceptable at all (e.g. null where a value is required)
	ErrArgument = errors.New("invalid argument")
)

// NoConversionError names the field, source type and target type for which no strategy could be resolved
type NoConversionError struct {
	Field  string
	Source reflect.Type
	Target reflect.Type
}

func (e *NoConversionError) Error() string {
	return fmt.Sprintf("%s: field %q cannot be assigned from %s to %s - register a constructor or conversion operator for the pair",
		ErrNoConversion.Error(), e.Field, typeName(e.Source), typeName(e.Target))
}

func (e *NoConversionError) Unwrap() error {
	return ErrNoConversion
}

// SerializerContractError is returned when the serializer configured on a Target does not implement Deserializer
type SerializerContractError struct {
	Field      string
	Serializer reflect.Type
}

func (e *SerializerContractError) Error() string {
	return fmt.Sprintf("%s: serializer %s configured for field %q does not implement Deserialize(string, reflect.Type) (any, error)",
		ErrSerializerContract.Error(), typeName(e.Serializer), e.Field)
}

func (e *SerializerContractError) Unwrap() error {
	return ErrSerializerContract
}

// ColumnNamer is an optional interface of a Record that can resolve column names for diagnostics
type ColumnNamer interface {
	// ColumnName returns the name of the column at index (second return arg false if not resolvable)
	ColumnName(index int) (string, bool)
}

// DataError is a per-value failure augmented with the column position, name and offending value
type DataError struct {
	Index  int
	Column string
	Value  string
	Type   string
	Err    error
}

const (
	unknownColumn = "n/a"
	nullValue     = "<null>"
)

func (e *DataError) Error() string {
	return fmt.Sprintf("error parsing column %d (%s=%s - %s): %v", e.Index, e.Column, e.Value, e.Type, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError wraps a conversion failure with diagnostics about the column and value that caused it
//
// the column name is resolved from the record if it implements ColumnNamer, otherwise "n/a" is used
func NewDataError(err error, index int, record Record, value any) error {
	if err == nil {
		return nil
	}
	result := &DataError{
		Index:  index,
		Column: unknownColumn,
		Value:  nullValue,
		Type:   "null",
		Err:    err,
	}
	if namer, ok := record.(ColumnNamer); ok {
		if name, ok := namer.ColumnName(index); ok {
			result.Column = name
		}
	}
	if !IsNull(value) {
		result.Value = fmt.Sprint(value)
		result.Type = fmt.Sprintf("%T", value)
	} else if value != nil {
		result.Type = fmt.Sprintf("%T", value)
	}
	return result
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
