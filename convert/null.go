package convert

// DBNull is the type of the Null marker
type DBNull struct{}

// String renders the marker
func (DBNull) String() string {
	return nullValue
}

// Null is the marker for a cell holding no data
//
// sources that report SQL NULL as an untyped nil are treated identically
var Null = DBNull{}

// IsNull reports whether a raw value is the null marker (or nil)
func IsNull(value any) bool {
	if value == nil {
		return true
	}
	_, ok := value.(DBNull)
	return ok
}

// Record is the minimal view of one row of a tabular source that this package consumes
type Record interface {
	// IsNull returns true if the field at index holds no data
	IsNull(index int) bool
	// Value returns the raw value of the field at index
	Value(index int) any
}

// Values is a Record backed by a slice of raw values
type Values []any

var _ Record = Values(nil)

func (v Values) IsNull(index int) bool {
	return IsNull(v[index])
}

func (v Values) Value(index int) any {
	return v[index]
}

// IsAllNull returns true if every one of count consecutive fields, starting at start, is null
//
// it is used to decide whether a nested sub-object should be constructed at all
func IsAllNull(record Record, start, count int) bool {
	for i := start; i < start+count; i++ {
		if !record.IsNull(i) {
			return false
		}
	}
	return true
}
