package rowbind

// Limiter is an interface that can be passed as an option to StructMapper.Rows or StructMapper.Iterator
//
// and is used to limit the number of rows read
type Limiter interface {
	// LimitReached should return true if the rowCount arg exceeds the maximum
	LimitReached(rowCount int) bool
}

// RowLimit is a Limiter that stops reading once the row count exceeds it
//
// zero (or less) means no limit
type RowLimit int

var _ Limiter = RowLimit(0)

func (l RowLimit) LimitReached(rowCount int) bool {
	return l > 0 && rowCount > int(l)
}

var defaultLimiter Limiter = RowLimit(0)
