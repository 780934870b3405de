package scheduler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anucha1993/tour-api-sub001/internal/application/service"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/config"
	"github.com/anucha1993/tour-api-sub001/internal/infrastructure/storage"
)

func emptyUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	cfg := &config.Config{
		Sync: config.SyncConfig{
			HeartbeatInterval: config.Duration(time.Second),
			RequestTimeout:    config.Duration(time.Second),
		},
		Scheduler: config.SchedulerConfig{
			TickInterval:   config.Duration(time.Minute),
			ReaperInterval: config.Duration(time.Minute),
			StuckThreshold: config.Duration(30 * time.Minute),
		},
	}
	svc := service.NewSyncService(repo, cfg, nil)
	return New(svc, repo, cfg.Scheduler, nil), repo
}

func TestDispatchDue_StartsIncrementalSyncOnce(t *testing.T) {
	sched, repo := newTestScheduler(t)
	upstream := emptyUpstream(t)
	require.NoError(t, repo.SaveWholesaler(&storage.Wholesaler{
		Code: "acme", BaseURL: upstream.URL, Active: true,
		Schedule: "1h", Endpoints: `{"tours":""}`,
	}))

	sched.dispatchDue()

	require.Eventually(t, func() bool {
		runs, err := repo.ListSyncRuns(0, 10)
		return err == nil && len(runs) == 1 && runs[0].Status != storage.RunStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	runs, err := repo.ListSyncRuns(0, 10)
	require.NoError(t, err)
	assert.Equal(t, storage.RunTypeIncremental, runs[0].Type)

	// A second tick within the interval dispatches nothing.
	sched.dispatchDue()
	runs, err = repo.ListSyncRuns(0, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDispatchDue_SkipsUnscheduledAndInvalid(t *testing.T) {
	sched, repo := newTestScheduler(t)
	require.NoError(t, repo.SaveWholesaler(&storage.Wholesaler{
		Code: "manual-only", Active: true,
	}))
	require.NoError(t, repo.SaveWholesaler(&storage.Wholesaler{
		Code: "broken", Active: true, Schedule: "often",
	}))

	sched.dispatchDue()

	runs, err := repo.ListSyncRuns(0, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
