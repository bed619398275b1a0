package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scribsy/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	a := New(nil, Options{})
	_, err := NewScheduler(a, "every day", time.UTC, nil)
	assert.Error(t, err)
	assert.Error(t, ValidateSchedule("61 * * * *"))
	assert.NoError(t, ValidateSchedule(DefaultSchedule))
}

// TestSchedulerStartStopNoLeak проверяет, что после Stop не остаётся горутин планировщика.
func TestSchedulerStartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := New(nil, Options{})
	s, err := NewScheduler(a, DefaultSchedule, time.UTC, nil)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

// TestSchedulerRunArchives проверяет, что тик планировщика выполняет архивацию.
func TestSchedulerRunArchives(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "db.json"), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertLive(ctx, post("A")))

	a := New(store, Options{Now: func() time.Time { return time.Date(2026, 10, 18, 16, 0, 0, 0, time.UTC) }})
	s, err := NewScheduler(a, DefaultSchedule, time.UTC, nil)
	require.NoError(t, err)

	s.run()

	live, err := store.ListLive(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
	_, ok, err := store.LatestArchiveDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
