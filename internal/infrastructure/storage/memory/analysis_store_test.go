package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisStore_SaveGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore(10, time.Hour, logger.NewNop())

	job := &entity.AnalysisJob{ID: "a1", Status: entity.AnalysisStatusProcessing, Progress: 0}
	require.NoError(t, store.Save(ctx, job))

	// the stored copy is detached from the caller's value
	job.Progress = 99
	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)

	got.Progress = 50
	again, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)

	require.NoError(t, store.Update(ctx, "a1", func(j *entity.AnalysisJob) {
		j.Progress = 80
		j.Message = "fetching"
	}))
	updated, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 80, updated.Progress)
	assert.Equal(t, "fetching", updated.Message)
	assert.False(t, updated.UpdatedAt.IsZero())
}

func TestAnalysisStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore(10, time.Hour, logger.NewNop())

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)

	err = store.Update(ctx, "missing", func(*entity.AnalysisJob) {})
	assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), repository.ErrAnalysisNotFound)
	assert.Error(t, store.Save(ctx, &entity.AnalysisJob{}))
}

func TestAnalysisStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore(3, time.Hour, logger.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, &entity.AnalysisJob{ID: fmt.Sprintf("job-%d", i)}))
	}

	assert.Equal(t, 3, store.Len())
	_, err := store.Get(ctx, "job-0")
	assert.ErrorIs(t, err, repository.ErrAnalysisNotFound)
	_, err = store.Get(ctx, "job-4")
	assert.NoError(t, err)
}

func TestAnalysisStore_Expires(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore(10, 50*time.Millisecond, logger.NewNop())

	require.NoError(t, store.Save(ctx, &entity.AnalysisJob{ID: "short-lived"}))
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "short-lived")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAnalysisStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewAnalysisStore(10, time.Hour, logger.NewNop())

	require.NoError(t, store.Save(ctx, &entity.AnalysisJob{ID: "gone"}))
	require.NoError(t, store.Delete(ctx, "gone"))
	assert.Equal(t, 0, store.Len())
}
