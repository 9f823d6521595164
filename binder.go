package rowbind

import (
	"github.com/go-andiamo/rowbind/convert"
	"reflect"
	"sort"
	"sync/atomic"
	"unsafe"
)

// fieldBinding is a struct field mapped to a column name
type fieldBinding struct {
	index []int
	// groups are the enclosing pointer-to-struct sub-objects (outermost first)
	groups []int
}

// rowBinder assigns the raw column values of a row into the fields of a struct
type rowBinder struct {
	info    *columnsInfo
	cache   *convert.Cache
	columns []*columnBinding
	groups  []*nullGroup
}

type columnBinding struct {
	index  int
	target *convert.Target
	groups []int
	last   atomic.Pointer[memoRoutine]
}

type memoRoutine struct {
	source  reflect.Type
	routine convert.Routine
}

// nullGroup is the set of columns read into a pointer-to-struct sub-object
//
// the sub-object is left nil when all of its columns are null
type nullGroup struct {
	runs [][2]int
}

func newRowBinder(rt reflect.Type, info *columnsInfo, fields map[string]*fieldBinding, cache *convert.Cache) (*rowBinder, error) {
	result := &rowBinder{
		info:  info,
		cache: cache,
	}
	groupColumns := make(map[int][]int)
	maxGroup := -1
	for i, name := range info.names {
		fb, ok := fields[name]
		if !ok {
			continue
		}
		target, err := convert.NewFieldTarget(rt, fb.index, info.mappings[name].targetOptions()...)
		if err != nil {
			return nil, err
		}
		result.columns = append(result.columns, &columnBinding{
			index:  i,
			target: target,
			groups: fb.groups,
		})
		for _, g := range fb.groups {
			groupColumns[g] = append(groupColumns[g], i)
			if g > maxGroup {
				maxGroup = g
			}
		}
	}
	result.groups = make([]*nullGroup, maxGroup+1)
	for g, cols := range groupColumns {
		result.groups[g] = newNullGroup(cols)
	}
	return result, nil
}

func newNullGroup(cols []int) *nullGroup {
	sort.Ints(cols)
	result := &nullGroup{}
	start := cols[0]
	for i := 1; i <= len(cols); i++ {
		if i == len(cols) || cols[i] != cols[i-1]+1 {
			result.runs = append(result.runs, [2]int{start, cols[i-1] - start + 1})
			if i < len(cols) {
				start = cols[i]
			}
		}
	}
	return result
}

func (g *nullGroup) isNull(record convert.Record) bool {
	for _, run := range g.runs {
		if !convert.IsAllNull(record, run[0], run[1]) {
			return false
		}
	}
	return true
}

func (b *rowBinder) bind(holder unsafe.Pointer, record *columnsReader) error {
	var nulls []bool
	if len(b.groups) > 0 {
		nulls = make([]bool, len(b.groups))
		for i, g := range b.groups {
			nulls[i] = g != nil && g.isNull(record)
		}
	}
	for _, cb := range b.columns {
		if cb.inNullGroup(nulls) {
			continue
		}
		raw := record.Value(cb.index)
		if err := cb.assign(b.cache, holder, raw); err != nil {
			return convert.NewDataError(err, cb.index, record, raw)
		}
	}
	return nil
}

func (cb *columnBinding) inNullGroup(nulls []bool) bool {
	for _, g := range cb.groups {
		if nulls[g] {
			return true
		}
	}
	return false
}

// assign uses the routine for the raw value's type - the last routine used is kept, as a column's
// values are almost always of the same type
func (cb *columnBinding) assign(cache *convert.Cache, holder unsafe.Pointer, raw any) error {
	source := reflect.TypeOf(raw)
	memo := cb.last.Load()
	if memo == nil || memo.source != source {
		routine, err := cache.Routine(source, cb.target)
		if err != nil {
			return err
		}
		memo = &memoRoutine{source: source, routine: routine}
		cb.last.Store(memo)
	}
	return memo.routine(holder, raw)
}
