package convert

import (
	"fmt"
	"github.com/viant/tagly/format"
	"github.com/viant/xunsafe"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unsafe"
)

// Assigner performs the final assignment of a converted value into a target instance
//
// holder is a pointer to the target instance; value is always assignable to the target's declared type (or nil)
type Assigner interface {
	// Assign stores value into the target field of holder
	Assign(holder unsafe.Pointer, value any)
}

// AssignerFunc adapts a func to Assigner
type AssignerFunc func(holder unsafe.Pointer, value any)

func (f AssignerFunc) Assign(holder unsafe.Pointer, value any) {
	f(holder, value)
}

// Target describes one assignable field of a target structure
//
// a Target is immutable once created. Targets made by NewFieldTarget for the same owner, field path
// and settings share routine cache entries; other targets are keyed by identity (pointer)
type Target struct {
	name              string
	rType             reflect.Type
	assigner          Assigner
	serializer        any
	enumCaseSensitive bool
	timeLayout        string
	descriptor        *fieldDescriptor
}

// fieldDescriptor identifies a field target by what it assigns and how
type fieldDescriptor struct {
	owner             reflect.Type
	path              string
	serializer        any
	enumCaseSensitive bool
	timeLayout        string
}

// TargetOption configures a Target
type TargetOption func(t *Target)

// WithSerializer sets the serializer used to deserialize text into the target type
//
// the serializer must implement Deserializer (and may implement CapabilityChecker) - this is checked when routines are resolved
func WithSerializer(serializer any) TargetOption {
	return func(t *Target) {
		t.serializer = serializer
	}
}

// WithEnumCaseSensitive makes enum parsing match member names exactly (the default ignores case)
func WithEnumCaseSensitive(caseSensitive bool) TargetOption {
	return func(t *Target) {
		t.enumCaseSensitive = caseSensitive
	}
}

// WithTimeLayout sets the layout used when parsing text into, or formatting a time as text for, the target
func WithTimeLayout(layout string) TargetOption {
	return func(t *Target) {
		t.timeLayout = layout
	}
}

// WithFormatTag applies the settings of a `format` struct tag (currently the time layout / date format)
func WithFormatTag(tag *format.Tag) TargetOption {
	return func(t *Target) {
		if tag != nil && tag.TimeLayout != "" {
			t.timeLayout = tag.TimeLayout
		}
	}
}

// NewTarget creates a new target descriptor
func NewTarget(name string, rType reflect.Type, assigner Assigner, options ...TargetOption) *Target {
	result := &Target{
		name:     name,
		rType:    rType,
		assigner: assigner,
	}
	for _, opt := range options {
		opt(result)
	}
	return result
}

// NewFieldTarget creates a target descriptor for the (possibly nested) field of owner addressed by index
//
// the `format` tag of the leaf field is applied before any options
func NewFieldTarget(owner reflect.Type, index []int, options ...TargetOption) (*Target, error) {
	assigner, err := NewFieldAssigner(owner, index)
	if err != nil {
		return nil, err
	}
	leaf := assigner.leaf
	if tag, err := format.Parse(leaf.Tag); err == nil {
		options = append([]TargetOption{WithFormatTag(tag)}, options...)
	}
	result := NewTarget(assigner.Name(), leaf.Type, assigner, options...)
	if result.serializer == nil || reflect.ValueOf(result.serializer).Comparable() {
		result.descriptor = &fieldDescriptor{
			owner:             owner,
			path:              indexPath(index),
			serializer:        result.serializer,
			enumCaseSensitive: result.enumCaseSensitive,
			timeLayout:        result.timeLayout,
		}
	}
	return result, nil
}

func indexPath(index []int) string {
	parts := make([]string, len(index))
	for i, idx := range index {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Name returns the target field name
func (t *Target) Name() string {
	return t.name
}

// Type returns the declared type of the target field
func (t *Target) Type() reflect.Type {
	return t.rType
}

// Serializer returns the configured serializer (or nil)
func (t *Target) Serializer() any {
	return t.serializer
}

// EnumCaseSensitive returns true if enum member names must match exactly
func (t *Target) EnumCaseSensitive() bool {
	return t.enumCaseSensitive
}

// TimeLayout returns the configured time layout (or empty)
func (t *Target) TimeLayout() string {
	return t.timeLayout
}

// Nullable returns true if the declared type is a nullable wrapper (pointer)
func (t *Target) Nullable() bool {
	return t.rType.Kind() == reflect.Ptr
}

// CanHoldNull returns true if the declared type can represent absence
func (t *Target) CanHoldNull() bool {
	return canHoldNull(t.rType)
}

func canHoldNull(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

type fieldStep struct {
	field *xunsafe.Field
	elem  reflect.Type // set when the field is a pointer to a struct that may need allocating
}

// FieldAssigner assigns values into a struct field addressed by an index path
//
// intermediate nil pointer-to-struct fields are allocated as the path is walked
type FieldAssigner struct {
	name  string
	steps []fieldStep
	leaf  *xunsafe.Field
	set   func(ptr unsafe.Pointer, value any)
}

// NewFieldAssigner creates a FieldAssigner for the field of owner addressed by index (as per reflect.Type.FieldByIndex)
func NewFieldAssigner(owner reflect.Type, index []int) (*FieldAssigner, error) {
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: empty field index", ErrArgument)
	}
	t := owner
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	result := &FieldAssigner{}
	for i, idx := range index {
		if t.Kind() != reflect.Struct || idx < 0 || idx >= t.NumField() {
			return nil, fmt.Errorf("%w: index %v does not address a field of %s", ErrArgument, index, owner)
		}
		sf := t.Field(idx)
		field := xunsafe.NewField(sf)
		if result.name == "" {
			result.name = sf.Name
		} else {
			result.name += "." + sf.Name
		}
		if i == len(index)-1 {
			result.leaf = field
			break
		}
		step := fieldStep{field: field}
		t = sf.Type
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
			step.elem = t
		}
		result.steps = append(result.steps, step)
	}
	result.set = leafSetter(result.leaf.Type)
	return result, nil
}

// Name returns the dotted field path
func (a *FieldAssigner) Name() string {
	return a.name
}

// Type returns the type of the leaf field
func (a *FieldAssigner) Type() reflect.Type {
	return a.leaf.Type
}

// Assign stores value into the leaf field, allocating nil pointer-to-struct fields along the path
func (a *FieldAssigner) Assign(holder unsafe.Pointer, value any) {
	a.set(a.leaf.Pointer(a.holder(holder)), value)
}

func (a *FieldAssigner) holder(ptr unsafe.Pointer) unsafe.Pointer {
	for _, step := range a.steps {
		ptr = step.field.Pointer(ptr)
		if step.elem != nil {
			ref := (*unsafe.Pointer)(ptr)
			if *ref == nil {
				*ref = reflect.New(step.elem).UnsafePointer()
			}
			ptr = *ref
		}
	}
	return ptr
}

var (
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	int64Type    = reflect.TypeOf(int64(0))
	float64Type  = reflect.TypeOf(float64(0))
	boolType     = reflect.TypeOf(false)
	timeType     = reflect.TypeOf(time.Time{})
	bytesType    = reflect.TypeOf([]byte(nil))
	durationType = reflect.TypeOf(time.Duration(0))
	runeType     = reflect.TypeOf(rune(0))
)

func leafSetter(t reflect.Type) func(ptr unsafe.Pointer, value any) {
	switch t {
	case stringType:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(string)
			*(*string)(ptr) = v
		}
	case intType:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(int)
			*(*int)(ptr) = v
		}
	case int64Type:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(int64)
			*(*int64)(ptr) = v
		}
	case float64Type:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(float64)
			*(*float64)(ptr) = v
		}
	case boolType:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(bool)
			*(*bool)(ptr) = v
		}
	case timeType:
		return func(ptr unsafe.Pointer, value any) {
			v, _ := value.(time.Time)
			*(*time.Time)(ptr) = v
		}
	}
	return func(ptr unsafe.Pointer, value any) {
		dest := reflect.NewAt(t, ptr).Elem()
		if value == nil {
			dest.Set(reflect.Zero(t))
			return
		}
		dest.Set(reflect.ValueOf(value))
	}
}
