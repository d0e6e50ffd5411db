package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string
	Counts map[uint32]int64
	Points []string
}

func TestFileSpill(t *testing.T) {
	t.Run("NewFileSpill in dir", func(t *testing.T) {
		dir := t.TempDir()

		spill, err := NewFileSpill[int](dir)
		require.NoError(t, err)
		defer spill.Close()

		assert.Equal(t, dir, filepath.Dir(spill.Path()))
	})

	t.Run("Append and Get", func(t *testing.T) {
		spill, err := NewFileSpill[string](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.Append("first"))
		require.NoError(t, spill.Append("second"))

		val, err := spill.Get(1)
		require.NoError(t, err)
		assert.Equal(t, "second", val)

		val, err = spill.Get(3)
		require.Error(t, err)
		assert.Empty(t, val)
	})

	t.Run("AppendBatch and Range keep order", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.AppendBatch([]int{10, 20, 30}))
		assert.Equal(t, uint64(3), spill.Len())

		var collected []int

		err = spill.Range(func(_ uint64, item int) error {
			collected = append(collected, item)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{10, 20, 30}, collected)
	})

	t.Run("Range callback error stops iteration", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir())
		require.NoError(t, err)
		defer spill.Close()

		require.NoError(t, spill.AppendBatch([]int{1, 2, 3}))

		count := 0
		stop := errors.New("stop")

		err = spill.Range(func(index uint64, _ int) error {
			count++
			if index == 1 {
				return stop
			}

			return nil
		})
		require.ErrorIs(t, err, stop)
		assert.Equal(t, 2, count)
	})

	t.Run("data survives Close", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir())
		require.NoError(t, err)

		require.NoError(t, spill.Append(7))
		require.NoError(t, spill.Close())
		require.NoError(t, spill.Close())

		val, err := spill.Get(0)
		require.NoError(t, err)
		assert.Equal(t, 7, val)
	})
}

func TestCreateAndOpenFileSpill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.gob")

	spill, err := CreateFileSpill[record](path)
	require.NoError(t, err)

	records := []record{
		{Name: "a.go", Counts: map[uint32]int64{10: 1, 11: -1}, Points: []string{"a_test.go#TestA"}},
		{Name: "b.go"},
	}
	require.NoError(t, spill.AppendBatch(records))
	require.NoError(t, spill.Close())

	opened, err := OpenFileSpill[record](path)
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, uint64(2), opened.Len())

	var got []record

	require.NoError(t, opened.Range(func(_ uint64, item record) error {
		got = append(got, item)
		return nil
	}))
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, "b.go", got[1].Name)

	assert.ErrorIs(t, opened.Append(record{Name: "c.go"}), ErrReadOnly)
}

func TestOpenFileSpill_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := OpenFileSpill[int](filepath.Join(t.TempDir(), "missing.gob"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.gob")
		require.NoError(t, os.WriteFile(path, []byte("not gob at all"), 0o600))

		_, err := OpenFileSpill[int](path)
		assert.Error(t, err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.gob")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		spill, err := OpenFileSpill[int](path)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), spill.Len())
	})
}
