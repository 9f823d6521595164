package rowbind

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/go-andiamo/rowbind/convert"
	"github.com/viant/tagly/format"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unsafe"
)

const sqlTag = "sql"

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// UseTagName is a type that can be passed as an option to NewStructMapper
// and determines the field tag name to use for field column mappings
//
// If this option is not passed to NewStructMapper, then the default "sql" tag is used
type UseTagName string

// UseDecimals is an option that determines whether float/numeric/decimal columns are read as decimal.Decimal
// before being converted into their fields
//
// by default, such columns are read as the driver supplies them
type UseDecimals bool

// FieldColumnNamer is an interface that can be passed as an option to NewStructMapper
// and is used to derive the column name to use for a given field
//
// If this option is not specified (or none are satisfied), the name is deduced from the "sql" tag for the field
// (or the name in its `format` tag)
type FieldColumnNamer interface {
	// ColumnName returns the column name to use for the given struct field
	//
	// The returned name is only used if second return arg is true
	ColumnName(structType reflect.Type, fld reflect.StructField) (string, bool)
}

// ErrorOnUnknownColumns is a type that can be passed as an option to NewStructMapper
// and determines whether an error is raised when a field is mapped, by tag, to an unknown column
type ErrorOnUnknownColumns bool

// ErrorOnUnMappedColumns is a type that can be passed as an option to NewStructMapper
// and determines whether an error is raised when there are columns that are not mapped to fields
type ErrorOnUnMappedColumns bool

// StructPostProcessor is an interface that can be passed as an option to NewStructMapper (or
// any of the row reading methods - StructMapper.Rows, StructMapper.Iterate, StructMapper.FirstRow, StructMapper.ExactlyOneRow, etc.)
//
// Multiple StructPostProcessor can be used, each one is called sequentially
type StructPostProcessor[T any] interface {
	// PostProcess executes the StructPostProcessor
	PostProcess(ctx context.Context, db SqlInterface, row *T) error
}

// StructMapper is the interface returned by NewStructMapper / MustNewStructMapper
type StructMapper[T any] interface {
	// Rows reads all rows and maps them into a slice of `T`
	//
	// options can be any of Query, AddClause, StructPostProcessor[T], ErrorTranslator or Limiter
	Rows(ctx context.Context, db SqlInterface, args []any, options ...any) ([]T, error)
	// Iterate iterates over the rows and calls the supplied handler with each row
	//
	// iteration stops at the end of rows - or an error is encountered - or the supplied handler returns false for `cont` (continue)
	//
	// options can be any of Query, AddClause, StructPostProcessor[T], ErrorTranslator or Limiter (ignored)
	Iterate(ctx context.Context, db SqlInterface, args []any, handler func(row T) (cont bool, err error), options ...any) error
	// Iterator return an iterator that can be ranged over
	//
	// errors end the iteration and are passed to the ErrorTranslator
	//
	// options can be any of Query, AddClause, StructPostProcessor[T], ErrorTranslator or Limiter
	Iterator(ctx context.Context, db SqlInterface, args []any, options ...any) func(func(int, T) bool)
	// FirstRow reads just the first row and maps it into a `T`
	//
	// if there are no rows, returns nil
	//
	// options can be any of Query, AddClause, StructPostProcessor[T], ErrorTranslator or Limiter (ignored)
	FirstRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (*T, error)
	// ExactlyOneRow reads exactly one row and maps it into a `T`
	//
	// if there are no rows, returns error sql.ErrNoRows
	//
	// options can be any of Query, AddClause, StructPostProcessor[T], ErrorTranslator or Limiter (ignored)
	ExactlyOneRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (T, error)
}

type structMapper[T any] struct {
	cols                   string
	defaultQuery           *Query
	mu                     sync.RWMutex
	mapped                 bool
	binder                 *rowBinder
	errorOnUnknownColumns  bool
	errorOnUnMappedColumns bool
	mapError               error
	postProcessors         []StructPostProcessor[T]
	useTagName             string
	fieldColumnNamers      []FieldColumnNamer
	errorTranslator        ErrorTranslator
	mappings               Mappings
	useDecimals            bool
	cache                  *convert.Cache
	members                *convert.Members
	logger                 *slog.Logger
}

// NewStructMapper creates a new struct mapper for reading structs from database rows
//
// options can be any of: Query, ErrorOnUnknownColumns, ErrorOnUnMappedColumns, StructPostProcessor[T], UseTagName,
// FieldColumnNamer, ErrorTranslator, Mappings, UseDecimals, *convert.Cache, *convert.Members or *slog.Logger
//
// if no *convert.Cache is supplied, the process-wide convert.Default cache is used - unless *convert.Members or
// a *slog.Logger are supplied, in which case the mapper gets its own cache
func NewStructMapper[T any](cols string, options ...any) (StructMapper[T], error) {
	var zero T
	if reflect.TypeOf(zero).Kind() != reflect.Struct {
		return nil, errors.New("StructMapper can only be used with struct types")
	}
	return (&structMapper[T]{
		cols:            cols,
		errorTranslator: defaultErrorTranslator,
		mappings:        Mappings{},
	}).processInitialOptions(options)
}

// MustNewStructMapper is the same as NewStructMapper except that it panics on error
func MustNewStructMapper[T any](cols string, options ...any) StructMapper[T] {
	result, err := NewStructMapper[T](cols, options...)
	if err != nil {
		panic(err)
	}
	return result
}

func (m *structMapper[T]) Rows(ctx context.Context, db SqlInterface, args []any, options ...any) (result []T, err error) {
	query, postProcessors, limiter, errTranslator, err := m.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = db.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var reader *rowReader[T]
			if reader, err = m.newRowReader(ctx, db, rows, postProcessors); err == nil {
				rowCount := 0
				for err == nil && rows.Next() {
					rowCount++
					if limiter.LimitReached(rowCount) {
						break
					}
					var item T
					if err = reader.read(&item); err == nil {
						result = append(result, item)
					}
				}
				if err == nil {
					err = rows.Err()
				}
			}
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	return result, nil
}

func (m *structMapper[T]) Iterate(ctx context.Context, db SqlInterface, args []any, handler func(row T) (cont bool, err error), options ...any) (err error) {
	query, postProcessors, _, errTranslator, err := m.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = db.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var reader *rowReader[T]
			if reader, err = m.newRowReader(ctx, db, rows, postProcessors); err == nil {
				cont := true
				for cont && err == nil && rows.Next() {
					var item T
					if err = reader.read(&item); err == nil {
						cont, err = handler(item)
					}
				}
				if err == nil {
					err = rows.Err()
				}
			}
		}
	}
	return translateError(err, errTranslator)
}

func (m *structMapper[T]) Iterator(ctx context.Context, db SqlInterface, args []any, options ...any) func(func(int, T) bool) {
	query, postProcessors, limiter, errTranslator, err := m.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = db.QueryContext(ctx, query, args...); err == nil {
			return func(yield func(int, T) bool) {
				defer func() {
					_ = rows.Close()
				}()
				reader, err := m.newRowReader(ctx, db, rows, postProcessors)
				for i := 0; err == nil && rows.Next(); i++ {
					if limiter.LimitReached(i + 1) {
						break
					}
					var item T
					if err = reader.read(&item); err == nil && !yield(i, item) {
						return
					}
				}
				if err == nil {
					err = rows.Err()
				}
				_ = translateError(err, errTranslator)
			}
		}
	}
	_ = translateError(err, errTranslator)
	return func(func(int, T) bool) {}
}

func (m *structMapper[T]) FirstRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (result *T, err error) {
	query, postProcessors, _, errTranslator, err := m.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = sqli.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var reader *rowReader[T]
			if reader, err = m.newRowReader(ctx, sqli, rows, postProcessors); err == nil {
				if rows.Next() {
					var item T
					if err = reader.read(&item); err == nil {
						result = &item
					}
				} else {
					err = rows.Err()
				}
			}
		}
	}
	if err != nil {
		return nil, translateError(err, errTranslator)
	}
	return result, nil
}

func (m *structMapper[T]) ExactlyOneRow(ctx context.Context, sqli SqlInterface, args []any, options ...any) (result T, err error) {
	query, postProcessors, _, errTranslator, err := m.rowMapOptions(options)
	if err == nil {
		var rows *sql.Rows
		if rows, err = sqli.QueryContext(ctx, query, args...); err == nil {
			defer func() {
				_ = rows.Close()
			}()
			var reader *rowReader[T]
			if reader, err = m.newRowReader(ctx, sqli, rows, postProcessors); err == nil {
				if rows.Next() {
					err = reader.read(&result)
				} else if err = rows.Err(); err == nil {
					err = sql.ErrNoRows
				}
			}
		}
	}
	return result, translateError(err, errTranslator)
}

func (m *structMapper[T]) processInitialOptions(options []any) (StructMapper[T], error) {
	m.useTagName = sqlTag
	seenQuery := false
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Query:
				if seenQuery {
					return nil, errors.New("cannot use multiple default queries")
				}
				seenQuery = true
				if err := checkForgedColumns(option); err != nil {
					return nil, err
				}
				qStr := Query("SELECT " + m.cols + " " + string(option))
				m.defaultQuery = &qStr
			case ErrorOnUnknownColumns:
				m.errorOnUnknownColumns = bool(option)
			case ErrorOnUnMappedColumns:
				m.errorOnUnMappedColumns = bool(option)
			case StructPostProcessor[T]:
				m.postProcessors = append(m.postProcessors, option)
			case UseTagName:
				if option != "" {
					m.useTagName = string(option)
				}
			case FieldColumnNamer:
				m.fieldColumnNamers = append(m.fieldColumnNamers, option)
			case ErrorTranslator:
				m.errorTranslator = option
			case Mappings:
				for k, v := range option {
					m.mappings[k] = v
				}
			case UseDecimals:
				m.useDecimals = bool(option)
			case *convert.Cache:
				m.cache = option
			case *convert.Members:
				m.members = option
			case *slog.Logger:
				m.logger = option
			default:
				return nil, fmt.Errorf("unknown option type: %T", o)
			}
		}
	}
	m.fieldColumnNamers = append(m.fieldColumnNamers, &defaultFieldColumnNamer{tagName: m.useTagName})
	if err := m.checkDuplicateMappedColumns(); err != nil {
		return nil, err
	}
	if m.cache == nil {
		if m.members == nil && m.logger == nil {
			m.cache = convert.Default()
		} else {
			var err error
			if m.cache, err = convert.NewCache(m.members, m.logger); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *structMapper[T]) rowMapOptions(options []any) (query string, postProcessors []StructPostProcessor[T], limiter Limiter, errorTranslator ErrorTranslator, err error) {
	querySet := false
	postProcessors = append(postProcessors, m.postProcessors...)
	limiter = defaultLimiter
	errorTranslator = m.errorTranslator
	var qb strings.Builder
	if m.defaultQuery != nil {
		querySet = true
		qb.WriteString(string(*m.defaultQuery))
	}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Query:
				querySet = true
				qb.Reset()
				if err = checkForgedColumns(option); err != nil {
					return
				}
				qb.WriteString("SELECT " + m.cols + " " + string(option))
			case AddClause:
				if !querySet {
					err = errors.New("add clause must have a query set")
					return
				}
				qb.WriteString(" " + string(option))
			case StructPostProcessor[T]:
				postProcessors = append(postProcessors, option)
			case Limiter:
				limiter = option
			case ErrorTranslator:
				errorTranslator = option
			default:
				err = fmt.Errorf("unknown option type: %T", o)
				return
			}
		}
	}
	if !querySet {
		err = errors.New("no default query")
	}
	return qb.String(), postProcessors, limiter, errorTranslator, err
}

func checkForgedColumns(query Query) error {
	if strings.HasPrefix(strings.TrimLeft(string(query), " \t\r\n"), ",") {
		return errors.New("cannot forge extra columns using Query")
	}
	return nil
}

// rowReader reads the current row of a result set into a `T`
type rowReader[T any] struct {
	ctx            context.Context
	db             SqlInterface
	rows           *sql.Rows
	columns        *columnsReader
	binder         *rowBinder
	postProcessors []StructPostProcessor[T]
}

func (m *structMapper[T]) newRowReader(ctx context.Context, db SqlInterface, rows *sql.Rows, postProcessors []StructPostProcessor[T]) (*rowReader[T], error) {
	binder, err := m.getBinder(rows)
	if err != nil {
		return nil, err
	}
	return &rowReader[T]{
		ctx:            ctx,
		db:             db,
		rows:           rows,
		columns:        binder.info.reader(),
		binder:         binder,
		postProcessors: postProcessors,
	}, nil
}

func (r *rowReader[T]) read(item *T) (err error) {
	if err = r.rows.Scan(r.columns.scanArgs...); err == nil {
		if err = r.binder.bind(unsafe.Pointer(item), r.columns); err == nil {
			for _, pp := range r.postProcessors {
				if err = pp.PostProcess(r.ctx, r.db, item); err != nil {
					break
				}
			}
		}
	}
	return err
}

func (m *structMapper[T]) getBinder(rows *sql.Rows) (*rowBinder, error) {
	m.mu.RLock()
	if m.mapped {
		m.mu.RUnlock()
		return m.binder, m.mapError
	}
	m.mu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mapped {
		return m.binder, m.mapError
	}
	var err error
	var info *columnsInfo
	if info, err = newColumnsInfo(rows, m.mappings, m.useDecimals); err == nil {
		var fields map[string]*fieldBinding
		var knownCols map[string]bool
		if fields, knownCols, err = m.mapColumns(info.names); err == nil {
			m.mapped = true
			if m.errorOnUnMappedColumns {
				unmapped := make([]string, 0, len(knownCols))
				for _, col := range info.names {
					if !knownCols[col] {
						unmapped = append(unmapped, col)
					}
				}
				if len(unmapped) > 0 {
					m.mapError = fmt.Errorf("unmapped column(s): %s", `"`+strings.Join(unmapped, `","`)+`"`)
					return nil, m.mapError
				}
			}
			if m.errorOnUnknownColumns {
				unknown := make([]string, 0, len(fields))
				for k := range fields {
					if _, ok := knownCols[k]; !ok {
						unknown = append(unknown, k)
					}
				}
				if len(unknown) > 0 {
					m.mapError = fmt.Errorf("unknown column(s): %s", `"`+strings.Join(unknown, `","`)+`"`)
					return nil, m.mapError
				}
			}
			if m.binder, m.mapError = newRowBinder(reflect.TypeOf((*T)(nil)).Elem(), info, fields, m.cache); m.mapError != nil {
				return nil, m.mapError
			}
		}
	}
	return m.binder, err
}

func (m *structMapper[T]) mapColumns(columns []string) (map[string]*fieldBinding, map[string]bool, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	knownCols := make(map[string]bool, len(columns))
	for _, col := range columns {
		knownCols[col] = false
	}
	result := make(map[string]*fieldBinding)
	groups := 0
	err := buildFieldMapRecursive(m.fieldColumnNamers, rt, nil, nil, &groups, result, knownCols)
	return result, knownCols, err
}

func buildFieldMapRecursive(namers []FieldColumnNamer, rt reflect.Type, parentIndex []int, parentGroups []int, groups *int, result map[string]*fieldBinding, knownCols map[string]bool) (err error) {
	for i := 0; err == nil && i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		index := append(append([]int{}, parentIndex...), f.Index...)
		useColName, named := columnName(namers, rt, f)
		if named && (useColName == "-" || useColName == "") {
			continue
		} else if !named {
			if st, isPtr, ok := subStruct(f.Type); ok {
				fieldGroups := parentGroups
				if isPtr {
					fieldGroups = append(append([]int{}, parentGroups...), *groups)
					*groups++
				}
				err = buildFieldMapRecursive(namers, st, index, fieldGroups, groups, result, knownCols)
			}
			continue
		}
		if _, ok := knownCols[useColName]; ok {
			knownCols[useColName] = true
		}
		result[useColName] = &fieldBinding{
			index:  index,
			groups: parentGroups,
		}
	}
	return err
}

// columnName returns the column name of a field - a name of "-" means the field is explicitly not mapped
func columnName(namers []FieldColumnNamer, rt reflect.Type, f reflect.StructField) (string, bool) {
	for _, namer := range namers {
		if useColName, named := namer.ColumnName(rt, f); named {
			return useColName, true
		}
	}
	return "", false
}

// subStruct returns the struct type of a struct (or pointer to struct) field that holds further column fields
func subStruct(t reflect.Type) (reflect.Type, bool, bool) {
	isPtr := t.Kind() == reflect.Ptr
	if isPtr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || isScannable(t) {
		return nil, false, false
	}
	return t, isPtr, true
}

func isScannable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	// bizarrely, time.Time isn't scannable but drivers can scan it...
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return true
	}
	return t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType)
}

func (m *structMapper[T]) checkDuplicateMappedColumns() error {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	return walkStruct(m.fieldColumnNamers, rt, make(map[string]struct{}))
}

func walkStruct(namers []FieldColumnNamer, rt reflect.Type, seen map[string]struct{}) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		useColName, named := columnName(namers, rt, f)
		if named && (useColName == "-" || useColName == "") {
			continue
		} else if !named {
			if st, _, ok := subStruct(f.Type); ok {
				if err := walkStruct(namers, st, seen); err != nil {
					return err
				}
			}
			continue
		}
		if _, exists := seen[useColName]; exists {
			return fmt.Errorf("duplicate column mapping %q", useColName)
		}
		seen[useColName] = struct{}{}
	}
	return nil
}

type defaultFieldColumnNamer struct {
	tagName string
}

var _ FieldColumnNamer = &defaultFieldColumnNamer{}

func (d *defaultFieldColumnNamer) ColumnName(structType reflect.Type, fld reflect.StructField) (string, bool) {
	if tag, ok := fld.Tag.Lookup(d.tagName); ok {
		if tag == "" {
			return "", false
		}
		return tag, true
	}
	if tag, err := format.Parse(fld.Tag); err == nil && tag != nil {
		if tag.Ignore {
			return "-", true
		} else if tag.Name != "" {
			return tag.Name, true
		}
	}
	return "", false
}
