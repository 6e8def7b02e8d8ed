package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
)

func TestBatcherFlushesBySize(t *testing.T) {
	var sizes []int
	b := NewBatcher("t", 2, zap.NewNop(), func(rows []models.Row) error {
		sizes = append(sizes, len(rows))
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Add(models.Row{"x"}))
	}
	assert.Equal(t, []int{2, 2}, sizes)

	require.NoError(t, b.Flush())
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 5, b.Sent())

	require.NoError(t, b.Flush())
	assert.Len(t, sizes, 3, "empty flush is a no-op")
}

func TestBatcherKeepsRowsOnError(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	var got []models.Row
	b := NewBatcher("t", 10, zap.NewNop(), func(rows []models.Row) error {
		if fail {
			return boom
		}
		got = append(got, rows...)
		return nil
	})

	require.NoError(t, b.Add(models.Row{"1"}))
	assert.ErrorIs(t, b.Flush(), boom)
	assert.Equal(t, 0, b.Sent())

	fail = false
	require.NoError(t, b.Flush())
	assert.Equal(t, []models.Row{{"1"}}, got)
}

func TestBatcherBatchesAreNotReused(t *testing.T) {
	var kept [][]models.Row
	b := NewBatcher("t", 1, zap.NewNop(), func(rows []models.Row) error {
		kept = append(kept, rows)
		return nil
	})
	require.NoError(t, b.Add(models.Row{"a"}))
	require.NoError(t, b.Add(models.Row{"b"}))
	assert.Equal(t, [][]models.Row{{{"a"}}, {{"b"}}}, kept)
}
