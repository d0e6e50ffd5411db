package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type tracked struct{ n int }

func TestInstanceArena_Track(t *testing.T) {
	arena := NewInstanceArena()

	a, b := &tracked{n: 1}, &tracked{n: 2}

	idA := Track(arena, a)
	idB := Track(arena, b)

	assert.NotEqual(t, idA, idB)
	assert.Equal(t, idA, Track(arena, a))
	assert.Equal(t, 2, arena.Len())
	assert.Zero(t, Track[tracked](arena, nil))
}
