package convert

import (
	"cloud.google.com/go/civil"
	"encoding"
	"fmt"
	"github.com/viant/tagly/format"
	"google.golang.org/protobuf/types/known/structpb"
	"reflect"
	"strconv"
	"time"
)

// StrategyResolver decides the conversion strategy for a source type and target
type StrategyResolver interface {
	// Resolve returns the strategy for converting values of source into target
	Resolve(source reflect.Type, target *Target) (Strategy, error)
}

// Resolver is the default StrategyResolver
//
// rules are applied in a fixed order and the first that matches wins:
//
//	0. a configured serializer that is not a Deserializer is an error
//	1. text into rune (or *rune) - rune and int32 are the same type, so text into an int32 field
//	   is always read as a single character ("42" is malformed); use int or int64 for numeric text
//	2. bytes/text into a binary wrapper
//	3. text into a structured document (*structpb.Struct, *structpb.Value)
//	4. text deserialized by the target's serializer
//	5. text parsed as a registered enum member name
//	6. registered constructor
//	7. direct assign, box to interface, conversion operator, time offset, numeric coercion, string parse, to string
//
// a target declared as *T has the conversion resolved for T and the result re-wrapped,
// unless a rule produces the *T itself
type Resolver struct {
	members *Members
}

var _ StrategyResolver = (*Resolver)(nil)

// NewResolver creates a new Resolver using the supplied members (if members is nil, NewMembers is used)
func NewResolver(members *Members) *Resolver {
	if members == nil {
		members = NewMembers()
	}
	return &Resolver{
		members: members,
	}
}

var (
	dbNullType          = reflect.TypeOf(Null)
	civilTimeType       = reflect.TypeOf(civil.Time{})
	structpbStructType  = reflect.TypeOf((*structpb.Struct)(nil))
	structpbValueType   = reflect.TypeOf((*structpb.Value)(nil))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Resolve returns the strategy for converting values of source into target
//
// a nil (or DBNull) source resolves to NoStrategy, a source with no applicable rule is a *NoConversionError
func (r *Resolver) Resolve(source reflect.Type, target *Target) (Strategy, error) {
	if target == nil {
		return Strategy{}, fmt.Errorf("%w: nil target", ErrArgument)
	}
	declared := target.Type()
	result := Strategy{
		Source:        source,
		Target:        declared,
		Underlying:    declared,
		CaseSensitive: target.enumCaseSensitive,
		TimeLayout:    target.TimeLayout(),
	}
	var deserializer Deserializer
	if s := target.Serializer(); s != nil {
		d, ok := s.(Deserializer)
		if !ok {
			return Strategy{}, &SerializerContractError{Field: target.Name(), Serializer: reflect.TypeOf(s)}
		}
		deserializer = d
	}
	if source == nil || source == dbNullType {
		// only ever sees null, the routine needs no converter
		result.Kind = NoStrategy
		return result, nil
	}
	underlying := declared
	if declared.Kind() == reflect.Ptr {
		underlying = declared.Elem()
	}
	src := source
	if src.Kind() == reflect.Ptr && src != declared && !(underlying.Kind() == reflect.Interface && src.Implements(underlying)) {
		src = src.Elem()
		result.Deref = true
	}
	// produces sets the type the strategy yields, and whether it must be wrapped into the declared pointer
	produces := func(t reflect.Type) {
		result.Underlying = t
		result.Nullable = t != declared
	}
	text := isText(src)
	// 1
	if text && underlying == runeType {
		result.Kind = CharFromSingleCharString
		if declared != underlying {
			result.Kind = NullableCharFromSingleCharString
		}
		return result, nil
	}
	// 2
	if isBinaryWrapper(declared) && (text || isBytes(src)) {
		result.Kind = ByteArrayToBinaryWrapper
		return result, nil
	} else if isBinaryWrapper(underlying) && (text || isBytes(src)) {
		result.Kind = ByteArrayToBinaryWrapper
		produces(underlying)
		return result, nil
	}
	// 3
	switch {
	case declared == structpbStructType && text:
		result.Kind, result.Document = TextToStructuredDocument, DocumentStruct
		return result, nil
	case declared == structpbValueType && (text || isNumeric(src)):
		result.Kind, result.Document = TextToStructuredDocument, DocumentValue
		return result, nil
	}
	// 4
	if text && deserializer != nil && canDeserialize(deserializer, underlying) {
		result.Kind, result.Serializer = SerializerDeserialize, deserializer
		produces(underlying)
		return result, nil
	}
	// 5
	if text {
		if enum := r.members.Enum(underlying); enum != nil {
			result.Kind, result.Enum = EnumParseFromString, enum
			produces(underlying)
			return result, nil
		}
	}
	// 6
	if m := r.lookup(src, declared, underlying, r.members.Constructor); m != nil {
		result.Kind, result.Member = ConstructorConversion, m
		produces(m.Out)
		return result, nil
	}
	// 7
	switch {
	case src == declared:
		result.Kind = DirectUnboxAndAssign
		return result, nil
	case src == underlying:
		result.Kind = DirectUnboxAndAssign
		produces(underlying)
		return result, nil
	case underlying.Kind() == reflect.Interface && src.Implements(underlying):
		result.Kind = BoxToObject
		produces(underlying)
		return result, nil
	}
	if m := r.lookup(src, declared, underlying, r.members.Operator); m != nil {
		result.Kind, result.Member = OperatorConversion, m
		produces(m.Out)
		return result, nil
	}
	if isTimeOffset(src, underlying) {
		result.Kind = TimeOffsetConversion
		produces(underlying)
		return result, nil
	}
	if isNumeric(src) && isNumeric(underlying) {
		result.Kind = NumericCoercion
		produces(underlying)
		return result, nil
	}
	if text {
		if m := r.parser(declared, underlying, result.TimeLayout); m != nil {
			result.Kind, result.Member = StringParse, m
			produces(m.Out)
			return result, nil
		}
	}
	if underlying.Kind() == reflect.String {
		result.Kind = ToStringCoercion
		produces(underlying)
		return result, nil
	}
	return Strategy{}, &NoConversionError{Field: target.Name(), Source: source, Target: declared}
}

// lookup finds a member producing the declared type, falling back to one producing the underlying type
func (r *Resolver) lookup(src, declared, underlying reflect.Type, find func(src, dst reflect.Type) *Member) *Member {
	if m := find(src, declared); m != nil {
		return m
	}
	if underlying != declared {
		return find(src, underlying)
	}
	return nil
}

func (r *Resolver) parser(declared, underlying reflect.Type, layout string) *Member {
	if m := r.members.Parser(declared); m != nil {
		return m
	}
	if underlying != declared {
		if m := r.members.Parser(underlying); m != nil {
			return m
		}
	}
	return builtinParser(underlying, layout)
}

func builtinParser(t reflect.Type, layout string) *Member {
	result := &Member{In: stringType, Out: t}
	switch {
	case t == timeType:
		if layout == "" {
			layout = time.RFC3339
		}
		tag := &format.Tag{TimeLayout: layout}
		result.Name = "format.Tag.ParseTime(" + layout + ")"
		result.call = func(in any) (any, error) {
			return tag.ParseTime(in.(string))
		}
	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		result.Name = t.String() + ".UnmarshalText"
		result.call = func(in any) (any, error) {
			ptr := reflect.New(t)
			if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(in.(string))); err != nil {
				return nil, err
			}
			return ptr.Elem().Interface(), nil
		}
	case isNumeric(t):
		result.Name = "strconv(" + t.Kind().String() + ")"
		result.call = func(in any) (any, error) {
			return parsePrimitive(in.(string), t)
		}
	default:
		return nil
	}
	return result
}

func parsePrimitive(s string, t reflect.Type) (any, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return nil, err
		}
		v.SetFloat(f)
	}
	return v.Interface(), nil
}

func canDeserialize(d Deserializer, t reflect.Type) bool {
	if checker, ok := d.(CapabilityChecker); ok {
		return checker.CanDeserialize(t)
	}
	return !isPrimitive(t) && t.Kind() != reflect.Interface
}

func isText(t reflect.Type) bool {
	return t == stringType || t == bytesType
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func isBinaryWrapper(t reflect.Type) bool {
	return t != bytesType && isBytes(t)
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isPrimitive(t reflect.Type) bool {
	return isNumeric(t) || t.Kind() == reflect.String || t.Kind() == reflect.Complex64 || t.Kind() == reflect.Complex128 || t == timeType
}

func isTimeOffset(src, dst reflect.Type) bool {
	switch src {
	case timeType:
		return dst == durationType || dst == civilTimeType
	case durationType:
		return dst == timeType || dst == civilTimeType
	case civilTimeType:
		return dst == durationType
	}
	return false
}
