package rowbind

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestDefaultLimiter(t *testing.T) {
	require.False(t, defaultLimiter.LimitReached(1000000))
}

func TestRowLimit(t *testing.T) {
	require.False(t, RowLimit(2).LimitReached(2))
	require.True(t, RowLimit(2).LimitReached(3))
	require.False(t, RowLimit(-1).LimitReached(3))
}

type testLimiter struct {
	limit int
}

func (n *testLimiter) LimitReached(rowCount int) bool {
	return rowCount > n.limit
}
