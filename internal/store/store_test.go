package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewID_SortsByTime(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	b := NewID(now)
	c := NewID(now.Add(time.Second))

	assert.Len(t, a, 26)
	assert.Less(t, a, b, "monotonic within the same millisecond")
	assert.Less(t, b, c)
}

func TestPage(t *testing.T) {
	page, per, off := Page(0, 0)
	assert.Equal(t, []int{1, DefaultPerPage, 0}, []int{page, per, off})

	page, per, off = Page(3, 500)
	assert.Equal(t, []int{3, MaxPerPage, 200}, []int{page, per, off})
}
