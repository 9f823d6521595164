package convert

import (
	"cloud.google.com/go/civil"
	"fmt"
	"github.com/shopspring/decimal"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// OperatorKind distinguishes explicit from implicit conversion operators
type OperatorKind int

const (
	// Explicit - operator preferred over implicit operators declared on the same side
	Explicit OperatorKind = iota
	// Implicit - operator used only when no explicit operator is declared on the same side
	Implicit
)

// String returns "explicit" or "implicit"
func (k OperatorKind) String() string {
	if k == Implicit {
		return "implicit"
	}
	return "explicit"
}

// Declaration identifies which side of a conversion an operator is declared on
type Declaration int

const (
	// OnTarget - operator declared on the type being converted to
	OnTarget Declaration = iota
	// OnSource - operator declared on the type being converted from
	OnSource
)

// Member is a resolved constructor, conversion operator or parse function
type Member struct {
	Name       string
	In         reflect.Type
	Out        reflect.Type
	DeclaredOn reflect.Type
	Kind       OperatorKind
	call       func(in any) (any, error)
}

// Call invokes the member with a value of the In type
func (m *Member) Call(in any) (any, error) {
	return m.call(in)
}

func (m *Member) String() string {
	return m.Name
}

// Infallible adapts a conversion func that cannot fail to the form accepted by the Register funcs
func Infallible[S, T any](fn func(S) T) func(S) (T, error) {
	return func(s S) (T, error) {
		return fn(s), nil
	}
}

type typePair struct {
	src reflect.Type
	dst reflect.Type
}

// Members is a registry of constructors, conversion operators, parse functions and enums
//
// it is safe for concurrent use; registration should be completed before routines are resolved
// because resolved routines are cached and do not observe later registrations
type Members struct {
	mu           sync.RWMutex
	constructors map[typePair]*Member
	operators    map[typePair][]*Member
	parsers      map[reflect.Type]*Member
	enums        map[reflect.Type]*Enum
}

// NewMembers creates a registry pre-populated with the built-in decimal and civil conversions
func NewMembers() *Members {
	result := newMembers()
	RegisterConstructor(result, Infallible(func(s string) []byte { return []byte(s) }))
	RegisterConstructor(result, Infallible(decimal.NewFromFloat))
	RegisterConstructor(result, Infallible(decimal.NewFromInt))
	RegisterConstructor(result, decimal.NewFromString)
	RegisterConstructor(result, Infallible(civil.DateOf))
	RegisterConstructor(result, Infallible(civil.DateTimeOf))
	RegisterOperator(result, OnSource, Explicit, Infallible(decimal.Decimal.InexactFloat64))
	RegisterOperator(result, OnSource, Explicit, Infallible(decimal.Decimal.IntPart))
	RegisterOperator(result, OnSource, Implicit, Infallible(decimal.Decimal.String))
	RegisterOperator(result, OnSource, Explicit, Infallible(func(d civil.Date) time.Time { return d.In(time.UTC) }))
	RegisterOperator(result, OnSource, Explicit, Infallible(func(dt civil.DateTime) time.Time { return dt.In(time.UTC) }))
	RegisterParser(result, civil.ParseDate)
	RegisterParser(result, civil.ParseTime)
	RegisterParser(result, civil.ParseDateTime)
	return result
}

func newMembers() *Members {
	return &Members{
		constructors: make(map[typePair]*Member),
		operators:    make(map[typePair][]*Member),
		parsers:      make(map[reflect.Type]*Member),
		enums:        make(map[reflect.Type]*Enum),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func funcName(fn any) string {
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("%T", fn)
}

func newMember[S, T any](fn func(S) (T, error)) *Member {
	return &Member{
		Name: funcName(fn),
		In:   typeOf[S](),
		Out:  typeOf[T](),
		call: func(in any) (any, error) {
			return fn(in.(S))
		},
	}
}

// RegisterConstructor registers a constructor of T accepting exactly one S
//
// a later registration for the same S and T replaces the earlier one
func RegisterConstructor[S, T any](m *Members, fn func(S) (T, error)) {
	member := newMember(fn)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constructors[typePair{member.In, member.Out}] = member
}

// RegisterOperator registers a conversion operator from S to T, declared on either S or T
func RegisterOperator[S, T any](m *Members, on Declaration, kind OperatorKind, fn func(S) (T, error)) {
	member := newMember(fn)
	member.Kind = kind
	member.DeclaredOn = member.Out
	if on == OnSource {
		member.DeclaredOn = member.In
	}
	key := typePair{member.In, member.Out}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operators[key] = append(m.operators[key], member)
}

// RegisterParser registers a static parse-from-text function for T
func RegisterParser[T any](m *Members, fn func(string) (T, error)) {
	member := newMember(fn)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsers[member.Out] = member
}

// Constructor returns the constructor of dst accepting exactly src (or nil)
func (m *Members) Constructor(src, dst reflect.Type) *Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constructors[typePair{src, dst}]
}

// Operator returns the conversion operator from src to dst (or nil)
//
// operators declared on dst are searched before those declared on src, and explicit before implicit for each
func (m *Members) Operator(src, dst reflect.Type) *Member {
	m.mu.RLock()
	candidates := m.operators[typePair{src, dst}]
	m.mu.RUnlock()
	for _, declaredOn := range []reflect.Type{dst, src} {
		for _, kind := range []OperatorKind{Explicit, Implicit} {
			for _, candidate := range candidates {
				if candidate.DeclaredOn == declaredOn && candidate.Kind == kind {
					return candidate
				}
			}
		}
	}
	return nil
}

// Parser returns the registered parse function of dst (or nil)
func (m *Members) Parser(dst reflect.Type) *Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parsers[dst]
}

// Enum returns the registered enum for t (or nil)
func (m *Members) Enum(t reflect.Type) *Enum {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enums[t]
}

// Integer is the set of types that can underlie an enum
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Enum is a named integer type with named members
type Enum struct {
	Type    reflect.Type
	names   map[string]any
	folded  map[string]any
	numbers map[int64]any
}

// RegisterEnum registers T as an enum whose member names are given by their String method
func RegisterEnum[T interface {
	Integer
	fmt.Stringer
}](m *Members, members ...T) {
	names := make(map[string]T, len(members))
	for _, member := range members {
		names[member.String()] = member
	}
	RegisterEnumNames(m, names)
}

// RegisterEnumNames registers T as an enum with the supplied member names
func RegisterEnumNames[T Integer](m *Members, names map[string]T) {
	enum := &Enum{
		Type:    typeOf[T](),
		names:   make(map[string]any, len(names)),
		folded:  make(map[string]any, len(names)),
		numbers: make(map[int64]any, len(names)),
	}
	for name, value := range names {
		enum.names[name] = value
		enum.folded[strings.ToLower(name)] = value
		enum.numbers[int64(value)] = value
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enums[enum.Type] = enum
}

// Parse returns the member named by text
//
// surrounding whitespace is ignored, and numeric text is accepted if it is the value of a member
func (e *Enum) Parse(text string, caseSensitive bool) (any, error) {
	text = strings.TrimSpace(text)
	if v, ok := e.names[text]; ok {
		return v, nil
	}
	if !caseSensitive {
		if v, ok := e.folded[strings.ToLower(text)]; ok {
			return v, nil
		}
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		if v, ok := e.numbers[n]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a member of %s", ErrMalformedValue, text, e.Type)
}
