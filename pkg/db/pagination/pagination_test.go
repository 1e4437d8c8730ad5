package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, info := Slice(items, Page{Page: 2, PageSize: 2})
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, PageInfo{Page: 2, PageSize: 2, TotalCount: 5, HasMore: true}, info)

	page, info = Slice(items, Page{Page: 3, PageSize: 2})
	assert.Equal(t, []int{5}, page)
	assert.False(t, info.HasMore)

	page, info = Slice(items, Page{Page: 9, PageSize: 2})
	assert.Empty(t, page)
	assert.Equal(t, int64(5), info.TotalCount)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, PageSize: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, MaxPageSize, Page{Page: 1, PageSize: 1000}.Normalize().PageSize)
	assert.Equal(t, 40, Page{Page: 3, PageSize: 20}.Offset())
}
