package convert

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
	"time"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

func TestNewMembers_Constructors(t *testing.T) {
	m := NewMembers()

	c := m.Constructor(float64Type, decimalType)
	require.NotNil(t, c)
	v, err := c.Call(1.5)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.5").Equal(v.(decimal.Decimal)))

	c = m.Constructor(int64Type, decimalType)
	require.NotNil(t, c)
	v, err = c.Call(int64(42))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(42).Equal(v.(decimal.Decimal)))

	c = m.Constructor(stringType, decimalType)
	require.NotNil(t, c)
	_, err = c.Call("not a number")
	assert.Error(t, err)

	c = m.Constructor(timeType, reflect.TypeOf(civil.Date{}))
	require.NotNil(t, c)
	v, err = c.Call(time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, v)

	c = m.Constructor(stringType, bytesType)
	require.NotNil(t, c)
	v, err = c.Call("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	assert.Nil(t, m.Constructor(intType, decimalType))
}

func TestNewMembers_Operators(t *testing.T) {
	m := NewMembers()

	op := m.Operator(decimalType, float64Type)
	require.NotNil(t, op)
	assert.Equal(t, Explicit, op.Kind)
	assert.Equal(t, decimalType, op.DeclaredOn)
	v, err := op.Call(decimal.RequireFromString("2.25"))
	require.NoError(t, err)
	assert.Equal(t, 2.25, v)

	op = m.Operator(decimalType, stringType)
	require.NotNil(t, op)
	assert.Equal(t, Implicit, op.Kind)

	op = m.Operator(reflect.TypeOf(civil.Date{}), timeType)
	require.NotNil(t, op)
	v, err = op.Call(civil.Date{Year: 2020, Month: time.March, Day: 1})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), v)

	assert.Nil(t, m.Operator(float64Type, decimalType))
}

type meters float64

type feet float64

func TestMembers_OperatorPrecedence(t *testing.T) {
	m := newMembers()
	RegisterOperator(m, OnSource, Implicit, Infallible(func(v meters) feet { return 1 }))
	RegisterOperator(m, OnSource, Explicit, Infallible(func(v meters) feet { return 2 }))
	src, dst := reflect.TypeOf(meters(0)), reflect.TypeOf(feet(0))

	v, err := m.Operator(src, dst).Call(meters(1))
	require.NoError(t, err)
	assert.Equal(t, feet(2), v)

	RegisterOperator(m, OnTarget, Implicit, Infallible(func(v meters) feet { return 3 }))
	v, err = m.Operator(src, dst).Call(meters(1))
	require.NoError(t, err)
	assert.Equal(t, feet(3), v)

	RegisterOperator(m, OnTarget, Explicit, Infallible(func(v meters) feet { return 4 }))
	v, err = m.Operator(src, dst).Call(meters(1))
	require.NoError(t, err)
	assert.Equal(t, feet(4), v)
	assert.Equal(t, dst, m.Operator(src, dst).DeclaredOn)
}

func TestMembers_Parsers(t *testing.T) {
	m := NewMembers()
	p := m.Parser(reflect.TypeOf(civil.Date{}))
	require.NotNil(t, p)
	v, err := p.Call("2023-12-25")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2023, Month: time.December, Day: 25}, v)

	p = m.Parser(civilTimeType)
	require.NotNil(t, p)
	v, err = p.Call("13:14:15")
	require.NoError(t, err)
	assert.Equal(t, civil.Time{Hour: 13, Minute: 14, Second: 15}, v)

	assert.Nil(t, m.Parser(intType))
	assert.NotEmpty(t, p.String())
}

func TestMembers_RegisterConstructorReplaces(t *testing.T) {
	m := newMembers()
	RegisterConstructor(m, Infallible(func(s string) label { return "first" }))
	RegisterConstructor(m, Infallible(func(s string) label { return "second" }))
	v, err := m.Constructor(stringType, reflect.TypeOf(label(""))).Call("x")
	require.NoError(t, err)
	assert.Equal(t, label("second"), v)
}

func TestEnum_Parse(t *testing.T) {
	m := newMembers()
	RegisterEnum(m, red, green, blue)
	enum := m.Enum(reflect.TypeOf(red))
	require.NotNil(t, enum)

	testCases := []struct {
		text          string
		caseSensitive bool
		expect        color
		expectErr     bool
	}{
		{text: "Green", expect: green},
		{text: "green", expect: green},
		{text: "GREEN", expect: green},
		{text: "  Blue ", expect: blue},
		{text: "Green", caseSensitive: true, expect: green},
		{text: "green", caseSensitive: true, expectErr: true},
		{text: "0", expect: red},
		{text: "2", expect: blue},
		{text: "7", expectErr: true},
		{text: "purple", expectErr: true},
		{text: "", expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			v, err := enum.Parse(tc.text, tc.caseSensitive)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrMalformedValue)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expect, v)
			}
		})
	}
	assert.Nil(t, m.Enum(intType))
}

func TestRegisterEnumNames(t *testing.T) {
	m := newMembers()
	RegisterEnumNames(m, map[string]color{"rouge": red, "vert": green})
	v, err := m.Enum(reflect.TypeOf(red)).Parse("VERT", false)
	require.NoError(t, err)
	assert.Equal(t, green, v)
}
