package rowbind

import (
	"database/sql"
	"fmt"
	"github.com/go-andiamo/rowbind/convert"
	"github.com/shopspring/decimal"
	"reflect"
	"strconv"
	"strings"
)

// ColumnScanner is a func that can be used by Mapping to read the value of a column
//
// the value returned is the raw value that is then converted into the struct field
type ColumnScanner func(src any) (value any, err error)

// BoolColumn is a ColumnScanner that can be used by Mapping.Scanner to convert a column to a boolean
//
// Particularly useful for MySql which only supports BOOL columns as TINYINT
func BoolColumn(src any) (any, error) {
	switch v := src.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("type %T is not a bool", src)
}

type columnsInfo struct {
	count       int
	names       []string
	scanTypes   []reflect.Type
	dbTypes     []string
	mappings    Mappings
	useDecimals bool
}

// columnsReader holds the raw values of the current row
type columnsReader struct {
	count    int
	names    []string
	values   []any
	scanArgs []any
}

var (
	_ convert.Record      = (*columnsReader)(nil)
	_ convert.ColumnNamer = (*columnsReader)(nil)
)

func newColumnsInfo(rows *sql.Rows, mappings Mappings, useDecimals bool) (result *columnsInfo, err error) {
	var cts []*sql.ColumnType
	if cts, err = rows.ColumnTypes(); err == nil {
		count := len(cts)
		result = &columnsInfo{
			count:       count,
			names:       make([]string, count),
			scanTypes:   make([]reflect.Type, count),
			dbTypes:     make([]string, count),
			mappings:    mappings,
			useDecimals: useDecimals,
		}
		for i, ct := range cts {
			result.names[i] = ct.Name()
			result.scanTypes[i] = ct.ScanType()
			result.dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}
	return result, err
}

func (ci *columnsInfo) reader() *columnsReader {
	r := &columnsReader{
		count:    ci.count,
		values:   make([]any, ci.count),
		scanArgs: make([]any, ci.count),
		names:    ci.names,
	}
	for i := 0; i < ci.count; i++ {
		r.scanArgs[i] = ci.buildScanner(r, i)
	}
	return r
}

var (
	stringScanType     = reflect.TypeOf("")
	nullStringScanType = reflect.TypeOf(sql.NullString{})
	float32ScanType    = reflect.TypeOf(float32(0))
	float64ScanType    = reflect.TypeOf(float64(0))
	nullFloatScanType  = reflect.TypeOf(sql.NullFloat64{})
)

func (ci *columnsInfo) buildScanner(cr *columnsReader, index int) sql.Scanner {
	if m, ok := ci.mappings[ci.names[index]]; ok && m.Scanner != nil {
		return &customColumnScanner{
			columns: cr,
			index:   index,
			scanner: m.Scanner,
		}
	}
	dbType := ""
	if index < len(ci.dbTypes) {
		dbType = ci.dbTypes[index]
	}
	switch {
	case dbType == "JSON" || dbType == "JSONB" || dbType == "TEXT" || strings.HasSuffix(dbType, "CHAR"):
		return &stringColumnScanner{
			columns: cr,
			index:   index,
		}
	case ci.useDecimals && (dbType == "DECIMAL" || dbType == "NUMERIC" || dbType == "DOUBLE" || strings.HasPrefix(dbType, "FLOAT")):
		return &decimalColumnScanner{
			columns: cr,
			index:   index,
		}
	}
	var scanType reflect.Type
	if index < len(ci.scanTypes) {
		scanType = ci.scanTypes[index]
	}
	switch scanType {
	case stringScanType, nullStringScanType:
		return &stringColumnScanner{
			columns: cr,
			index:   index,
		}
	case float32ScanType, float64ScanType, nullFloatScanType:
		if ci.useDecimals {
			return &decimalColumnScanner{
				columns: cr,
				index:   index,
			}
		}
	}
	return &rawColumnScanner{
		columns: cr,
		index:   index,
	}
}

func (cr *columnsReader) IsNull(index int) bool {
	return convert.IsNull(cr.values[index])
}

func (cr *columnsReader) Value(index int) any {
	return cr.values[index]
}

func (cr *columnsReader) ColumnName(index int) (string, bool) {
	if index >= 0 && index < len(cr.names) {
		return cr.names[index], true
	}
	return "", false
}

type customColumnScanner struct {
	columns *columnsReader
	index   int
	scanner ColumnScanner
}

func (c *customColumnScanner) Scan(src any) error {
	v, err := c.scanner(src)
	if err == nil {
		c.columns.values[c.index] = v
	}
	return err
}

// rawColumnScanner keeps the driver value, copying bytes as the driver may reuse its buffer
type rawColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *rawColumnScanner) Scan(src any) error {
	if b, ok := src.([]byte); ok {
		src = append([]byte(nil), b...)
	}
	c.columns.values[c.index] = src
	return nil
}

type stringColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *stringColumnScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		c.columns.values[c.index] = string(v)
	default:
		c.columns.values[c.index] = v
	}
	return nil
}

type decimalColumnScanner struct {
	columns *columnsReader
	index   int
}

func (c *decimalColumnScanner) Scan(src any) error {
	var err error
	switch v := src.(type) {
	case float32:
		c.columns.values[c.index] = decimal.NewFromFloat32(v)
	case float64:
		c.columns.values[c.index] = decimal.NewFromFloat(v)
	case int64:
		c.columns.values[c.index] = decimal.New(v, 0)
	case []byte:
		c.columns.values[c.index], err = decimal.NewFromString(unquote(string(v)))
	case string:
		c.columns.values[c.index], err = decimal.NewFromString(unquote(v))
	default:
		c.columns.values[c.index] = src
	}
	return err
}

func unquote(s string) string {
	if len(s) > 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
