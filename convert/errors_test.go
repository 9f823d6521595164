package convert

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

type namedValues struct {
	Values
	names []string
}

func (n namedValues) ColumnName(index int) (string, bool) {
	if index < 0 || index >= len(n.names) {
		return "", false
	}
	return n.names[index], true
}

func TestNewDataError(t *testing.T) {
	cause := errors.New("fooey")
	record := namedValues{Values: Values{"abc", nil}, names: []string{"foo", "bar"}}

	err := NewDataError(cause, 0, record, "abc")
	require.Error(t, err)
	assert.Equal(t, "error parsing column 0 (foo=abc - string): fooey", err.Error())
	assert.ErrorIs(t, err, cause)
	var de *DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.Index)
	assert.Equal(t, "foo", de.Column)
	assert.Equal(t, "abc", de.Value)
	assert.Equal(t, "string", de.Type)

	err = NewDataError(cause, 1, record, nil)
	assert.Equal(t, "error parsing column 1 (bar=<null> - null): fooey", err.Error())

	err = NewDataError(cause, 5, record, Null)
	assert.Equal(t, "error parsing column 5 (n/a=<null> - convert.DBNull): fooey", err.Error())

	err = NewDataError(cause, 1, Values{1, 2}, 2)
	assert.Equal(t, "error parsing column 1 (n/a=2 - int): fooey", err.Error())

	assert.NoError(t, NewDataError(nil, 0, record, "abc"))
}

func TestNoConversionError(t *testing.T) {
	err := error(&NoConversionError{Field: "Foo", Source: reflect.TypeOf(0), Target: reflect.TypeOf(struct{}{})})
	assert.ErrorIs(t, err, ErrNoConversion)
	assert.Contains(t, err.Error(), `field "Foo" cannot be assigned from int to struct {}`)
	assert.Contains(t, err.Error(), "register a constructor or conversion operator")
}

func TestSerializerContractError(t *testing.T) {
	err := error(&SerializerContractError{Field: "Foo", Serializer: reflect.TypeOf("")})
	assert.ErrorIs(t, err, ErrSerializerContract)
	assert.Contains(t, err.Error(), `serializer string configured for field "Foo"`)
}
