package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stanstork/stratum-etl/internal/repository"
	"github.com/stanstork/stratum-etl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 14, 30, 0, 0, time.UTC) }
}

func newTracker(t *testing.T, clock func() time.Time) (*Tracker, repository.ExecutionRepository) {
	t.Helper()
	repo := repository.NewExecutionRepository(testutil.NewMetadataDB(t))
	return New(repo, zerolog.Nop()).WithClock(clock), repo
}

func TestMarkOutcome(t *testing.T) {
	tr, repo := newTracker(t, fixedClock(2024, 6, 3))
	ctx := context.Background()
	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

	next, err := tr.MarkOutcome(ctx, Outcome{
		JobID:         7,
		Frequency:     "WEEKLY",
		RecordsRead:   120,
		RecordsLoaded: 120,
		Reconcile:     true,
		Start:         start,
		End:           start.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), next)

	got, err := repo.GetLatest(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, int64(120), got.RecordsLoaded)
	assert.Equal(t, models.ReconMatch, got.ReconStatus)
	assert.Equal(t, "2024-06-03", got.LastExecDate.Format(time.DateOnly))
	assert.Equal(t, "2024-06-10", got.NextExecDate.Format(time.DateOnly))
	assert.False(t, got.ErrorMessage.Valid)
}

func TestReconStatus(t *testing.T) {
	assert.Equal(t, models.ReconNA, Outcome{RecordsRead: 1}.ReconStatus())
	assert.Equal(t, models.ReconMatch, Outcome{Reconcile: true, RecordsRead: 3, RecordsLoaded: 3}.ReconStatus())
	assert.Equal(t, models.ReconFailed, Outcome{Reconcile: true, RecordsRead: 3, RecordsLoaded: 2}.ReconStatus())
}

func TestMarkFailure_OverwritesTodaysRecord(t *testing.T) {
	tr, repo := newTracker(t, fixedClock(2024, 6, 3))
	ctx := context.Background()

	_, err := tr.MarkOutcome(ctx, Outcome{JobID: 7, Frequency: "MONTHLY", RecordsRead: 5, RecordsLoaded: 5})
	require.NoError(t, err)

	reason := strings.Repeat("x", 1500)
	require.NoError(t, tr.MarkFailure(ctx, 7, reason, time.Time{}, time.Time{}))

	got, err := repo.GetLatest(ctx, 7)
	require.NoError(t, err)
	assert.False(t, got.Completed())
	assert.Zero(t, got.RecordsRead)
	assert.Zero(t, got.RecordsLoaded)
	assert.Equal(t, models.ReconNA, got.ReconStatus)
	assert.Equal(t, "2024-06-03", got.NextExecDate.Format(time.DateOnly))
	assert.Len(t, got.ErrorMessage.String, MaxErrorLength)
	assert.False(t, got.LoadStart.Valid)
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, models.Execution) error {
	return errors.New("metadata store down")
}

func TestMarkOutcome_StoreError(t *testing.T) {
	tr := New(failingStore{}, zerolog.Nop())

	_, err := tr.MarkOutcome(context.Background(), Outcome{JobID: 1})
	assert.EqualError(t, err, "metadata store down")
	assert.Error(t, tr.MarkFailure(context.Background(), 1, "boom", time.Now(), time.Now()))
}
