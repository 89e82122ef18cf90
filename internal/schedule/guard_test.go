package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	next *time.Time
	err  error
	got  time.Time
}

func (f *fakeHistory) NextEligible(_ context.Context, _ int64, today time.Time) (*time.Time, error) {
	f.got = today
	return f.next, f.err
}

func TestGuardShouldSkip(t *testing.T) {
	next := date(2024, 6, 10)

	t.Run("no history runs", func(t *testing.T) {
		g := NewGuard(&fakeHistory{}, zerolog.Nop())
		skip, at, err := g.ShouldSkip(context.Background(), 7, date(2024, 6, 5))
		require.NoError(t, err)
		assert.False(t, skip)
		assert.Nil(t, at)
	})

	t.Run("future next date skips", func(t *testing.T) {
		h := &fakeHistory{next: &next}
		g := NewGuard(h, zerolog.Nop())
		skip, at, err := g.ShouldSkip(context.Background(), 7, time.Date(2024, 6, 5, 14, 30, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, skip)
		require.NotNil(t, at)
		assert.Equal(t, next, *at)
		assert.Equal(t, date(2024, 6, 5), h.got, "today is truncated to a date")
	})

	t.Run("store error propagates", func(t *testing.T) {
		g := NewGuard(&fakeHistory{err: errors.New("boom")}, zerolog.Nop())
		_, _, err := g.ShouldSkip(context.Background(), 7, date(2024, 6, 5))
		assert.Error(t, err)
	})
}
