package convert

import (
	"cloud.google.com/go/civil"
	"errors"
	"fmt"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"reflect"
	"time"
	"unsafe"
)

// Routine converts a raw value and assigns the result into the target field of holder
//
// a null raw value (nil or Null) assigns nil to targets that can hold it and leaves value-type targets untouched
type Routine func(holder unsafe.Pointer, raw any) error

type converter func(value any) (any, error)

// Synthesize builds the Routine that carries out strategy for target
//
// the returned routine captures only the strategy and target, both immutable, and is safe for concurrent use
func Synthesize(strategy Strategy, target *Target) (Routine, error) {
	if target == nil || target.assigner == nil {
		return nil, fmt.Errorf("%w: target has no assigner", ErrArgument)
	}
	conv, err := newConverter(strategy)
	if err != nil {
		return nil, err
	}
	if strategy.Nullable {
		conv = wrapNullable(conv, strategy.Underlying)
	}
	assigner := target.assigner
	name := target.Name()
	source := strategy.Source
	deref := strategy.Deref
	holdsNull := canHoldNull(strategy.Target)
	return func(holder unsafe.Pointer, raw any) error {
		if IsNull(raw) {
			if holdsNull {
				assigner.Assign(holder, nil)
			}
			return nil
		}
		if t := reflect.TypeOf(raw); t != source {
			return fmt.Errorf("%w: field %q expected a %s value but got %s", ErrMalformedValue, name, typeName(source), t)
		}
		value := raw
		if deref {
			rv := reflect.ValueOf(raw)
			if rv.IsNil() {
				if holdsNull {
					assigner.Assign(holder, nil)
				}
				return nil
			}
			value = rv.Elem().Interface()
		}
		result, err := conv(value)
		if err != nil {
			return conversionError(name, err)
		}
		assigner.Assign(holder, result)
		return nil
	}, nil
}

func conversionError(field string, err error) error {
	for _, sentinel := range []error{ErrMalformedValue, ErrRangeViolation, ErrArgument, ErrNoConversion, ErrSerializerContract} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: field %q: %w", ErrMalformedValue, field, err)
}

func wrapNullable(conv converter, underlying reflect.Type) converter {
	return func(value any) (any, error) {
		v, err := conv(value)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(underlying)
		if v != nil {
			ptr.Elem().Set(reflect.ValueOf(v))
		}
		return ptr.Interface(), nil
	}
}

func identity(value any) (any, error) {
	return value, nil
}

func asText(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value.(string)
}

func newConverter(s Strategy) (converter, error) {
	switch s.Kind {
	case NoStrategy:
		return func(value any) (any, error) {
			return nil, fmt.Errorf("%w: unexpected non-null %T", ErrMalformedValue, value)
		}, nil
	case DirectUnboxAndAssign, BoxToObject:
		return identity, nil
	case CharFromSingleCharString:
		return func(value any) (any, error) {
			return ReadChar(value)
		}, nil
	case NullableCharFromSingleCharString:
		return func(value any) (any, error) {
			return ReadNullableChar(value)
		}, nil
	case ByteArrayToBinaryWrapper:
		return binaryConverter(s.Underlying), nil
	case TextToStructuredDocument:
		return documentConverter(s.Document)
	case SerializerDeserialize:
		return serializerConverter(s.Serializer, s.Underlying), nil
	case EnumParseFromString:
		enum, caseSensitive := s.Enum, s.CaseSensitive
		return func(value any) (any, error) {
			return enum.Parse(asText(value), caseSensitive)
		}, nil
	case ConstructorConversion, OperatorConversion:
		return s.Member.Call, nil
	case StringParse:
		member := s.Member
		return func(value any) (any, error) {
			return member.Call(asText(value))
		}, nil
	case TimeOffsetConversion:
		return timeOffsetConverter(s.valueType(), s.Underlying)
	case NumericCoercion:
		to := s.Underlying
		return func(value any) (any, error) {
			return coerceNumeric(value, to), nil
		}, nil
	case ToStringCoercion:
		to, layout := s.Underlying, s.TimeLayout
		return func(value any) (any, error) {
			return reflect.ValueOf(toString(value, layout)).Convert(to).Interface(), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: cannot synthesize strategy %s", ErrArgument, s.Kind)
}

// valueType is the type of raw values after dereferencing
func (s Strategy) valueType() reflect.Type {
	if s.Deref {
		return s.Source.Elem()
	}
	return s.Source
}

func binaryConverter(to reflect.Type) converter {
	return func(value any) (any, error) {
		var data []byte
		if s, ok := value.(string); ok {
			data = []byte(s)
		} else {
			src := reflect.ValueOf(value).Bytes()
			data = make([]byte, len(src))
			copy(data, src)
		}
		return reflect.ValueOf(data).Convert(to).Interface(), nil
	}
}

func documentConverter(model DocumentModel) (converter, error) {
	switch model {
	case DocumentStruct:
		return func(value any) (any, error) {
			result := &structpb.Struct{}
			if err := protojson.Unmarshal([]byte(asText(value)), result); err != nil {
				return nil, fmt.Errorf("%w: invalid json object: %v", ErrMalformedValue, err)
			}
			return result, nil
		}, nil
	case DocumentValue:
		return func(value any) (any, error) {
			switch value.(type) {
			case string, []byte:
				result := &structpb.Value{}
				if err := protojson.Unmarshal([]byte(asText(value)), result); err != nil {
					return nil, fmt.Errorf("%w: invalid json value: %v", ErrMalformedValue, err)
				}
				return result, nil
			}
			rv := reflect.ValueOf(value)
			if rv.Kind() == reflect.Bool {
				return structpb.NewBoolValue(rv.Bool()), nil
			}
			return structpb.NewNumberValue(rv.Convert(float64Type).Float()), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown document model %d", ErrArgument, model)
}

func serializerConverter(d Deserializer, to reflect.Type) converter {
	return func(value any) (any, error) {
		result, err := d.Deserialize(asText(value), to)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return reflect.Zero(to).Interface(), nil
		}
		if t := reflect.TypeOf(result); t != to {
			return nil, fmt.Errorf("%w: serializer returned %s, expected %s", ErrMalformedValue, t, to)
		}
		return result, nil
	}
}

func timeOffsetConverter(from, to reflect.Type) (converter, error) {
	switch {
	case from == timeType && to == durationType:
		return func(value any) (any, error) {
			return DurationFromTime(value.(time.Time))
		}, nil
	case from == timeType && to == civilTimeType:
		return func(value any) (any, error) {
			return TimeOfDayFromTime(value.(time.Time))
		}, nil
	case from == durationType && to == timeType:
		return func(value any) (any, error) {
			return TimeFromDuration(value.(time.Duration)), nil
		}, nil
	case from == durationType && to == civilTimeType:
		return func(value any) (any, error) {
			return TimeOfDayFromDuration(value.(time.Duration))
		}, nil
	case from == civilTimeType && to == durationType:
		return func(value any) (any, error) {
			return DurationFromTimeOfDay(value.(civil.Time)), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: no time offset conversion from %s to %s", ErrArgument, typeName(from), typeName(to))
}

// coerceNumeric converts between numeric kinds with Go conversion semantics, bool being 1/0 (and non-zero for true)
func coerceNumeric(value any, to reflect.Type) any {
	rv := reflect.ValueOf(value)
	switch {
	case rv.Kind() == reflect.Bool && to.Kind() != reflect.Bool:
		n := int64(0)
		if rv.Bool() {
			n = 1
		}
		rv = reflect.ValueOf(n)
	case rv.Kind() != reflect.Bool && to.Kind() == reflect.Bool:
		rv = reflect.ValueOf(!rv.IsZero())
	}
	return rv.Convert(to).Interface()
}

func toString(value any, layout string) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		if layout != "" {
			return v.Format(layout)
		}
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}
