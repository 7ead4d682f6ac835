package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		page, size    int
		offset, limit int
	}{
		{name: "first page", page: 1, size: 10, offset: 0, limit: 10},
		{name: "third page", page: 3, size: 5, offset: 10, limit: 5},
		{name: "page below one", page: 0, size: 5, offset: 0, limit: 5},
		{name: "size too large", page: 2, size: 1000, offset: DefaultPageSize, limit: DefaultPageSize},
		{name: "size zero", page: 1, size: 0, offset: 0, limit: DefaultPageSize},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			offset, limit := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.offset, offset)
			assert.Equal(t, tt.limit, limit)
		})
	}
}

func TestParseIntDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
}

func TestNewPage(t *testing.T) {
	t.Parallel()

	p := NewPage([]int{1, 2}, 2, 2, 2, 5)
	assert.Equal(t, []int{1, 2}, p.Data)
	assert.Equal(t, int64(3), p.Meta.TotalPages)
	assert.True(t, p.Meta.HasPrev)
	assert.True(t, p.Meta.HasNext)

	empty := NewPage[int](nil, 1, 0, 10, 0)
	assert.NotNil(t, empty.Data)
	assert.False(t, empty.Meta.HasNext)
	assert.Equal(t, int64(0), empty.Meta.TotalPages)
}
