package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucha1993/tour-api-sub001/internal/errs"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			HeartbeatInterval: config.Duration(10 * time.Millisecond),
			RequestTimeout:    config.Duration(time.Second),
		},
		Scheduler: config.SchedulerConfig{
			StuckThreshold: config.Duration(30 * time.Minute),
		},
	}
}

func newTestService(t *testing.T) (*SyncService, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	return NewSyncService(repo, testConfig(), nil), repo
}

func seedActiveWholesaler(t *testing.T, repo *storage.MockRepository) *storage.Wholesaler {
	t.Helper()
	w := &storage.Wholesaler{Code: "acme", Name: "Acme", BaseURL: "http://unused", Active: true}
	require.NoError(t, repo.SaveWholesaler(w))
	return w
}

func TestStartSync_UnknownWholesaler(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.StartSync(99, storage.RunTypeManual, nil, 0)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestStartSync_InactiveWholesalerRejected(t *testing.T) {
	svc, repo := newTestService(t)
	w := &storage.Wholesaler{Code: "dormant", Active: false}
	require.NoError(t, repo.SaveWholesaler(w))

	_, err := svc.StartSync(w.ID, storage.RunTypeManual, nil, 0)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestStartSync_InvalidSyncType(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)

	_, err := svc.StartSync(w.ID, "sideways", nil, 0)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestStartSync_SingleFlightPerWholesaler(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)

	// Simulate an in-flight run by holding the wholesaler's lock.
	require.True(t, svc.lockFor(w.ID).TryLock())
	defer svc.lockFor(w.ID).Unlock()

	_, err := svc.StartSync(w.ID, storage.RunTypeManual, nil, 0)

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
	assert.Contains(t, err.Error(), "already running")
}

func TestStartSync_PayloadRunCompletes(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)
	payload := []json.RawMessage{json.RawMessage(`{"id": "T-1", "title": "Tokyo"}`)}

	runID, err := svc.StartSync(w.ID, "", payload, 0)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		run, err := svc.GetSyncRunStatus(runID)
		return err == nil && run.Status == storage.RunStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	run, err := svc.GetSyncRunStatus(runID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunTypeManual, run.Type)
	assert.Equal(t, 1, run.Counters.Tours.Created)

	tour, err := repo.FindTourByExternalID(w.ID, "T-1")
	require.NoError(t, err)
	assert.NotNil(t, tour)
}

func TestStartSync_LockReleasedAfterRun(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)
	payload := []json.RawMessage{json.RawMessage(`{"id": "T-1"}`)}

	runID, err := svc.StartSync(w.ID, "", payload, 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		run, err := svc.GetSyncRunStatus(runID)
		return err == nil && run.Status != storage.RunStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	// A follow-up run must be accepted once the first finished. The lock is
	// released just after the run record turns terminal, so poll briefly.
	require.Eventually(t, func() bool {
		_, err := svc.StartSync(w.ID, "", payload, 0)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartSync_RunRecordFailureReleasesLock(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)
	repo.StartSyncRunErr = assert.AnError

	_, err := svc.StartSync(w.ID, storage.RunTypeManual, nil, 0)
	require.Error(t, err)

	repo.StartSyncRunErr = nil
	_, err = svc.StartSync(w.ID, "", []json.RawMessage{json.RawMessage(`{"id": "T-1"}`)}, 0)
	assert.NoError(t, err)
}

func TestGetSyncRunStatus_UnknownRun(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetSyncRunStatus("no-such-run")

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestReapStuckRuns_TimesOutStaleRuns(t *testing.T) {
	repo := storage.NewMockRepository()
	cfg := testConfig()
	cfg.Scheduler.StuckThreshold = config.Duration(time.Nanosecond)
	svc := NewSyncService(repo, cfg, nil)

	w := seedActiveWholesaler(t, repo)
	run, err := repo.StartSyncRun(w.ID, storage.RunTypeIncremental)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	reaped, err := svc.ReapStuckRuns()

	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	got, err := repo.GetSyncRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusTimeout, got.Status)
}

func TestPreviewMapping_UnknownWholesaler(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PreviewMapping(42, json.RawMessage(`{}`))

	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSyncOneTour_PersistsSynchronously(t *testing.T) {
	svc, repo := newTestService(t)
	w := seedActiveWholesaler(t, repo)
	require.NoError(t, repo.SaveFieldMapping(&storage.FieldMapping{
		WholesalerID: w.ID, Section: "tour", TargetField: "name", APIPath: "title",
	}))

	result, err := svc.SyncOneTour(context.Background(), w.ID,
		json.RawMessage(`{"id": "T-7", "title": "Direct"}`))

	require.NoError(t, err)
	assert.True(t, result.IsNew)

	tour, err := repo.FindTourByExternalID(w.ID, "T-7")
	require.NoError(t, err)
	require.NotNil(t, tour)
	assert.Equal(t, "Direct", tour.Name)
}
