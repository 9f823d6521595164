package convert

import (
	"fmt"
	"reflect"
)

// StrategyKind identifies one conversion strategy of the closed set of strategies
type StrategyKind int

const (
	// NoStrategy - the source only ever carries null, so no conversion is needed
	NoStrategy StrategyKind = iota
	// DirectUnboxAndAssign - source type equals the target type, the value is assigned as is
	DirectUnboxAndAssign
	// CharFromSingleCharString - single character text into a rune
	CharFromSingleCharString
	// NullableCharFromSingleCharString - single character text into a *rune
	NullableCharFromSingleCharString
	// ByteArrayToBinaryWrapper - bytes (copied) into a named []byte type
	ByteArrayToBinaryWrapper
	// TextToStructuredDocument - text parsed into one of the structured document models
	TextToStructuredDocument
	// SerializerDeserialize - text deserialized by the serializer configured on the target
	SerializerDeserialize
	// EnumParseFromString - text parsed as the name of a registered enum member
	EnumParseFromString
	// ConstructorConversion - registered constructor accepting the source type
	ConstructorConversion
	// OperatorConversion - registered explicit/implicit conversion operator
	OperatorConversion
	// TimeOffsetConversion - date/time to duration (or bounded time-of-day) offset from Epoch, and back
	TimeOffsetConversion
	// NumericCoercion - primitive numeric/bool conversion with Go's native (truncating) semantics
	NumericCoercion
	// StringParse - text parsed by a static parse operation of the target type
	StringParse
	// ToStringCoercion - default textual representation of the source
	ToStringCoercion
	// BoxToObject - source assigned to an interface target
	BoxToObject
)

var strategyNames = [...]string{
	NoStrategy:                       "NoStrategy",
	DirectUnboxAndAssign:             "DirectUnboxAndAssign",
	CharFromSingleCharString:         "CharFromSingleCharString",
	NullableCharFromSingleCharString: "NullableCharFromSingleCharString",
	ByteArrayToBinaryWrapper:         "ByteArrayToBinaryWrapper",
	TextToStructuredDocument:         "TextToStructuredDocument",
	SerializerDeserialize:            "SerializerDeserialize",
	EnumParseFromString:              "EnumParseFromString",
	ConstructorConversion:            "ConstructorConversion",
	OperatorConversion:               "OperatorConversion",
	TimeOffsetConversion:             "TimeOffsetConversion",
	NumericCoercion:                  "NumericCoercion",
	StringParse:                      "StringParse",
	ToStringCoercion:                 "ToStringCoercion",
	BoxToObject:                      "BoxToObject",
}

func (k StrategyKind) String() string {
	if k >= 0 && int(k) < len(strategyNames) {
		return strategyNames[k]
	}
	return fmt.Sprintf("StrategyKind(%d)", int(k))
}

// DocumentModel identifies which structured document model a TextToStructuredDocument strategy produces
type DocumentModel int

const (
	// DocumentNone - not a document strategy
	DocumentNone DocumentModel = iota
	// DocumentStruct - *structpb.Struct
	DocumentStruct
	// DocumentValue - *structpb.Value
	DocumentValue
)

// Strategy is the resolved conversion for one (source type, target) pair
type Strategy struct {
	Kind StrategyKind
	// Source is the runtime type of the raw value
	Source reflect.Type
	// Deref is true if raw values are pointers and the conversion applies to what they point at
	Deref bool
	// Target is the declared type of the target field
	Target reflect.Type
	// Underlying is the type the strategy's conversion produces
	//
	// it is the target type with the nullable wrapper removed, unless the strategy itself yields the declared type
	Underlying reflect.Type
	// Nullable is true if the converted value must be wrapped into the declared (pointer) type before assignment
	Nullable bool
	// Document is the document model for TextToStructuredDocument
	Document DocumentModel
	// Serializer is the deserializer for SerializerDeserialize
	Serializer Deserializer
	// Member is the constructor, operator or parser for ConstructorConversion, OperatorConversion and StringParse
	Member *Member
	// Enum is the enum for EnumParseFromString
	Enum *Enum
	// CaseSensitive is true if enum member names must match exactly
	CaseSensitive bool
	// TimeLayout is used when parsing/formatting times
	TimeLayout string
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s(%s -> %s)", s.Kind, typeName(s.Source), typeName(s.Target))
}
