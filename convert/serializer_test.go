package convert

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

func TestJSONSerializer_Deserialize(t *testing.T) {
	s := JSONSerializer{}

	v, err := s.Deserialize(`{"mode":"fast","tags":["a","b"],"limit":3}`, reflect.TypeOf(settings{}))
	require.NoError(t, err)
	assert.Equal(t, settings{Mode: "fast", Tags: []string{"a", "b"}, Limit: 3}, v)

	v, err = s.Deserialize(`["x","y"]`, reflect.TypeOf([]string{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v)

	_, err = s.Deserialize(`{"mode":`, reflect.TypeOf(settings{}))
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestJSONSerializer_Gojay(t *testing.T) {
	v, err := JSONSerializer{}.Deserialize(`{"x":1,"y":-2}`, reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: -2}, v)

	_, err = JSONSerializer{}.Deserialize(`{"x":"one"}`, reflect.TypeOf(point{}))
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestYAMLSerializer(t *testing.T) {
	s := YAMLSerializer{}
	assert.True(t, s.CanDeserialize(reflect.TypeOf(settings{})))
	assert.True(t, s.CanDeserialize(reflect.TypeOf(map[string]int{})))
	assert.False(t, s.CanDeserialize(stringType))
	assert.False(t, s.CanDeserialize(intType))

	v, err := s.Deserialize("mode: slow\ntags:\n  - z\nlimit: 9\n", reflect.TypeOf(settings{}))
	require.NoError(t, err)
	assert.Equal(t, settings{Mode: "slow", Tags: []string{"z"}, Limit: 9}, v)

	_, err = s.Deserialize("mode: [", reflect.TypeOf(settings{}))
	assert.ErrorIs(t, err, ErrMalformedValue)
}
