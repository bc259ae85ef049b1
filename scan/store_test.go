package scan

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avenlon/sitepulse/errors"
	sitetest "github.com/avenlon/sitepulse/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(sitetest.CreateTestDB(t))
}

func record(id string, ts int64) ScanRecord {
	return ScanRecord{
		ScanID:      id,
		Timestamp:   ts,
		PostTypes:   []string{"post"},
		Processed:   3,
		Total:       3,
		Status:      StatusCompleted,
		HealthScore: 100.0,
		Trigger:     TriggerManual,
	}
}

func TestActiveJobRoundTrip(t *testing.T) {
	store := newTestStore(t)

	job, err := store.ActiveJob()
	require.NoError(t, err)
	assert.Nil(t, job)

	saved := NewJob([]string{"post"}, []int64{1, 2}, []int64{1, 2, 3}, TriggerManual, time.Unix(1700000000, 0))
	require.NoError(t, store.SaveJob(saved))

	got, err := store.ActiveJob()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, []int64{1, 2}, got.Queue)
	assert.Equal(t, []int64{1, 2, 3}, got.MetricsQueue)

	require.NoError(t, store.DeleteActiveJob())
	got, err = store.ActiveJob()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < HistoryLimit+1; i++ {
		rec := record(fmt.Sprintf("SCN_%03d", i), int64(1700000000+i))
		require.NoError(t, store.AppendHistory(rec))
	}

	history, err := store.History()
	require.NoError(t, err)
	require.Len(t, history, HistoryLimit)
	// Newest first; the very first record fell off.
	assert.Equal(t, "SCN_100", history[0].ScanID)
	assert.Equal(t, "SCN_001", history[HistoryLimit-1].ScanID)
}

func TestGetScanRecord(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendHistory(record("SCN_a", 1700000000)))

	got, err := store.GetScanRecord("SCN_a")
	require.NoError(t, err)
	assert.Equal(t, "SCN_a", got.ScanID)

	_, err = store.GetScanRecord("SCN_missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDeleteScanRecordCascadesLastRun(t *testing.T) {
	store := newTestStore(t)

	rec := record("SCN_a", 1700000000)
	require.NoError(t, store.AppendHistory(rec))
	require.NoError(t, store.SetLastRun(&rec))

	deleted, err := store.DeleteScanRecord("SCN_a")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting the record that is also the last run clears the last run.
	last, err := store.LastRun()
	require.NoError(t, err)
	assert.Nil(t, last)

	history, err := store.History()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteScanRecordKeepsUnrelatedLastRun(t *testing.T) {
	store := newTestStore(t)

	older := record("SCN_old", 1700000000)
	newer := record("SCN_new", 1700000100)
	require.NoError(t, store.AppendHistory(older))
	require.NoError(t, store.AppendHistory(newer))
	require.NoError(t, store.SetLastRun(&newer))

	deleted, err := store.DeleteScanRecord("SCN_old")
	require.NoError(t, err)
	assert.True(t, deleted)

	last, err := store.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "SCN_new", last.ScanID)
}

func TestDeleteScanRecordMissing(t *testing.T) {
	store := newTestStore(t)

	deleted, err := store.DeleteScanRecord("SCN_ghost")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSettingsDefaultsAndRoundTrip(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.Settings()
	require.NoError(t, err)
	assert.True(t, settings.AutoScanEnabled)
	assert.Equal(t, "00:00", settings.ScheduledTime)
	assert.Equal(t, []string{"post", "page"}, settings.ScheduledPostTypes)

	settings.AutoScanEnabled = false
	settings.ScheduledTime = "03:30"
	settings.ScheduledPostTypes = []string{"page"}
	require.NoError(t, store.SaveSettings(settings))

	got, err := store.Settings()
	require.NoError(t, err)
	assert.Equal(t, settings, got)
}
