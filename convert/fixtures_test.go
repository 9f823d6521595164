package convert

import (
	"cloud.google.com/go/civil"
	"fmt"
	"github.com/francoispqt/gojay"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
	"io"
	"reflect"
	"testing"
	"time"
)

type color int

const (
	red color = iota
	green
	blue
)

func (c color) String() string {
	switch c {
	case red:
		return "Red"
	case green:
		return "Green"
	case blue:
		return "Blue"
	}
	return fmt.Sprintf("color(%d)", int(c))
}

type settings struct {
	Mode  string   `json:"mode"`
	Tags  []string `json:"tags"`
	Limit int      `json:"limit"`
}

type point struct {
	X int
	Y int
}

func (p *point) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "x":
		return dec.Int(&p.X)
	case "y":
		return dec.Int(&p.Y)
	}
	return nil
}

func (p *point) NKeys() int {
	return 2
}

type label string

type celsius float64

type fahrenheit float64

type address struct {
	Street string
	City   *string
}

type testRow struct {
	Name         string
	Label        label
	Age          int8
	Count        int
	Active       bool
	Initial      rune
	MaybeInitial *rune
	Score        *float64
	Ratio        float64
	Color        color
	MaybeColor   *color
	Doc          *structpb.Struct
	DocValue     *structpb.Value
	Blob         Binary
	MaybeBlob    *Binary
	Raw          []byte
	Price        decimal.Decimal
	MaybePrice   *decimal.Decimal
	Any          any
	Reader       io.Reader
	When         time.Time
	MaybeWhen    *time.Time
	Day          time.Time `format:"dateFormat=yyyy-MM-dd"`
	Date         civil.Date
	Elapsed      time.Duration
	TimeOfDay    civil.Time
	Settings     settings
	MaybeSetting *settings
	Point        point
	Tags         []string
	Temperature  fahrenheit
	Address      *address
	Inner        struct {
		Value int
	}
}

func testTarget(t *testing.T, name string, options ...TargetOption) *Target {
	rt := reflect.TypeOf(testRow{})
	sf, ok := rt.FieldByName(name)
	require.True(t, ok, name)
	target, err := NewFieldTarget(rt, sf.Index, options...)
	require.NoError(t, err)
	return target
}

func nestedTarget(t *testing.T, path ...string) *Target {
	rt := reflect.TypeOf(testRow{})
	var index []int
	ft := rt
	for _, name := range path {
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		sf, ok := ft.FieldByName(name)
		require.True(t, ok, name)
		index = append(index, sf.Index...)
		ft = sf.Type
	}
	target, err := NewFieldTarget(rt, index)
	require.NoError(t, err)
	return target
}

func testMembers() *Members {
	m := NewMembers()
	RegisterEnum(m, red, green, blue)
	RegisterOperator(m, OnTarget, Explicit, Infallible(func(c celsius) fahrenheit {
		return fahrenheit(float64(c)*9/5 + 32)
	}))
	return m
}

func ptr[T any](v T) *T {
	return &v
}
