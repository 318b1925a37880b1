package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteOne_AppendsUntilCapacityThenOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	rb.WriteOne(1)
	rb.WriteOne(2)
	rb.WriteOne(3)
	assert.Equal(t, []int{1, 2, 3}, rb.ReadAll())

	rb.WriteOne(4)
	assert.Equal(t, []int{2, 3, 4}, rb.ReadAll())
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, 3, rb.Cap())
}

func TestReadAll_EmptyBufferReturnsNil(t *testing.T) {
	rb := NewRingBuffer[string](2)
	assert.Nil(t, rb.ReadAll())
	assert.Equal(t, 0, rb.Len())
}

func TestReadAllWithFilter_AppliesFilterAndLimit(t *testing.T) {
	rb := NewRingBuffer[int](5)
	for i := 1; i <= 5; i++ {
		rb.WriteOne(i)
	}

	even := rb.ReadAllWithFilter(func(n int) bool { return n%2 == 0 }, 0)
	assert.Equal(t, []int{2, 4}, even)

	limited := rb.ReadAllWithFilter(func(int) bool { return true }, 2)
	assert.Equal(t, []int{1, 2}, limited)
}

func TestReadAllWithFilter_EmptyBufferReturnsNil(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Nil(t, rb.ReadAllWithFilter(func(int) bool { return true }, 0))
}
