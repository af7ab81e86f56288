package seqnum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLessThanNonWrapping(t *testing.T) {
	assert.True(t, LessThan(10, 20))
	assert.False(t, LessThan(20, 10))
	assert.False(t, LessThan(10, 10))
}

func TestLessThanWraps(t *testing.T) {
	var max32 Value = 1<<32 - 1
	assert.True(t, LessThan(max32, 0))
	assert.False(t, LessThan(0, max32))
}

func TestLessThanEq(t *testing.T) {
	assert.True(t, LessThanEq(10, 10))
	assert.True(t, LessThanEq(10, 11))
	assert.False(t, LessThanEq(11, 10))
}

func TestInRange(t *testing.T) {
	assert.True(t, InRange(15, 10, 20))
	assert.True(t, InRange(10, 10, 20))
	assert.True(t, InRange(20, 10, 20))
	assert.False(t, InRange(9, 10, 20))
	assert.False(t, InRange(21, 10, 20))
}

func TestAddSub(t *testing.T) {
	v := Value(100)
	assert.Equal(t, Value(150), v.Add(50))
	assert.Equal(t, Value(50), v.Sub(50))
	assert.Equal(t, Size(50), v.Size(v.Add(50)))
}
