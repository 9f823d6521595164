package convert

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"
)

type countingResolver struct {
	delegate StrategyResolver
	calls    atomic.Int64
	gate     chan struct{}
}

func (r *countingResolver) Resolve(source reflect.Type, target *Target) (Strategy, error) {
	r.calls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return r.delegate.Resolve(source, target)
}

func TestNewCache(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)
	assert.IsType(t, &Resolver{}, c.resolver)
	assert.NotNil(t, c.logger)

	resolver := &countingResolver{delegate: NewResolver(nil)}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c, err = NewCache(nil, NewMembers(), resolver, logger)
	require.NoError(t, err)
	assert.Equal(t, resolver, c.resolver)
	assert.Equal(t, logger, c.logger)

	_, err = NewCache("foo")
	require.Error(t, err)
	assert.Equal(t, "unknown option type: string", err.Error())

	assert.Panics(t, func() {
		_ = MustNewCache(1)
	})
	assert.NotNil(t, Default())
}

func TestCache_Routine_ResolvesOnce(t *testing.T) {
	resolver := &countingResolver{delegate: NewResolver(nil)}
	c := MustNewCache(resolver)
	target := testTarget(t, "Name")

	r1, err := c.Routine(stringType, target)
	require.NoError(t, err)
	r2, err := c.Routine(stringType, target)
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(r1).Pointer(), reflect.ValueOf(r2).Pointer())
	assert.Equal(t, int64(1), resolver.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, err = c.Routine(intType, target)
	require.NoError(t, err)
	// another target for the same field shares the key
	_, err = c.Routine(stringType, testTarget(t, "Name"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resolver.calls.Load())
	assert.Equal(t, 2, c.Len())

	s, err := c.Strategy(intType, target)
	require.NoError(t, err)
	assert.Equal(t, ToStringCoercion, s.Kind)
	assert.Equal(t, int64(2), resolver.calls.Load())
}

func TestCache_Routine_FieldTargetsShareEntries(t *testing.T) {
	resolver := &countingResolver{delegate: NewResolver(nil)}
	c := MustNewCache(resolver)
	for i := 0; i < 100; i++ {
		_, err := c.Routine(stringType, testTarget(t, "Name"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), resolver.calls.Load())

	// different settings are different keys
	_, err := c.Routine(stringType, testTarget(t, "Name", WithTimeLayout(time.Kitchen)))
	require.NoError(t, err)
	_, err = c.Routine(stringType, testTarget(t, "Settings", WithSerializer(JSONSerializer{})))
	require.NoError(t, err)
	_, err = c.Routine(stringType, testTarget(t, "Settings", WithSerializer(JSONSerializer{})))
	require.NoError(t, err)
	_, err = c.Routine(stringType, testTarget(t, "Settings", WithSerializer(YAMLSerializer{})))
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())

	// the same field reached from a pointer owner is described separately
	sf, _ := reflect.TypeOf(testRow{}).FieldByName("Name")
	target, err := NewFieldTarget(reflect.TypeOf(&testRow{}), sf.Index)
	require.NoError(t, err)
	_, err = c.Routine(stringType, target)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	// targets with their own assigner are keyed by identity
	assigner := AssignerFunc(func(holder unsafe.Pointer, value any) {})
	for i := 0; i < 3; i++ {
		_, err = c.Routine(stringType, NewTarget("custom", stringType, assigner))
		require.NoError(t, err)
	}
	assert.Equal(t, 8, c.Len())

	// a serializer that cannot be compared falls back to identity too
	for i := 0; i < 2; i++ {
		_, err = c.Routine(stringType, testTarget(t, "Settings", WithSerializer(funcSerializer(JSONSerializer{}.Deserialize))))
		require.NoError(t, err)
	}
	assert.Equal(t, 10, c.Len())
}

type funcSerializer func(text string, t reflect.Type) (any, error)

func (f funcSerializer) Deserialize(text string, t reflect.Type) (any, error) {
	return f(text, t)
}

func TestCache_Routine_Concurrent(t *testing.T) {
	resolver := &countingResolver{delegate: NewResolver(nil), gate: make(chan struct{})}
	c := MustNewCache(resolver)
	target := testTarget(t, "Age")

	const workers = 50
	var wg sync.WaitGroup
	var started sync.WaitGroup
	routines := make([]Routine, workers)
	errs := make([]error, workers)
	wg.Add(workers)
	started.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			routines[i], errs[i] = c.Routine(int64Type, target)
		}(i)
	}
	started.Wait()
	close(resolver.gate)
	wg.Wait()

	assert.Equal(t, int64(1), resolver.calls.Load())
	assert.Equal(t, 1, c.Len())
	first := reflect.ValueOf(routines[0]).Pointer()
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, first, reflect.ValueOf(routines[i]).Pointer())
	}

	row := &testRow{}
	require.NoError(t, routines[workers-1](unsafe.Pointer(row), int64(260)))
	assert.Equal(t, int8(4), row.Age)
}

func TestCache_Routine_CachesErrors(t *testing.T) {
	resolver := &countingResolver{delegate: NewResolver(nil)}
	buf := &bytes.Buffer{}
	c := MustNewCache(resolver, slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	target := testTarget(t, "Point")

	_, err1 := c.Routine(intType, target)
	require.Error(t, err1)
	assert.ErrorIs(t, err1, ErrNoConversion)
	_, err2 := c.Routine(intType, target)
	assert.Same(t, err1, err2)
	assert.Equal(t, int64(1), resolver.calls.Load())
	assert.Equal(t, 1, c.Len())
	assert.Contains(t, buf.String(), "no routine for field")
	assert.Contains(t, buf.String(), "field=Point")

	_, err := c.Routine(stringType, testTarget(t, "Settings", WithSerializer(notASerializer{})))
	assert.ErrorIs(t, err, ErrSerializerContract)

	_, err = c.Routine(stringType, testTarget(t, "Name"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "routine synthesized")
	assert.Contains(t, buf.String(), "strategy=DirectUnboxAndAssign")
}

func TestCache_Assign(t *testing.T) {
	c := MustNewCache(testMembers())
	row := &testRow{Age: 3}
	color := testTarget(t, "Color")
	age := testTarget(t, "Age")

	require.NoError(t, c.Assign(unsafe.Pointer(row), "blue", color))
	assert.Equal(t, blue, row.Color)
	require.NoError(t, c.Assign(unsafe.Pointer(row), nil, age))
	assert.Equal(t, int8(3), row.Age)
	require.NoError(t, c.Assign(unsafe.Pointer(row), "12", age))
	assert.Equal(t, int8(12), row.Age)

	err := c.Assign(unsafe.Pointer(row), struct{}{}, age)
	assert.ErrorIs(t, err, ErrNoConversion)
	assert.Equal(t, 4, c.Len())
}
