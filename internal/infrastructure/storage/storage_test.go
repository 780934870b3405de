package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedWholesaler(t *testing.T, s *Storage) *Wholesaler {
	t.Helper()
	w := &Wholesaler{Code: "acme", Name: "Acme Tours", BaseURL: "https://api.acme.test", Active: true}
	require.NoError(t, s.SaveWholesaler(w))
	require.NotZero(t, w.ID)
	return w
}

func TestMigrations_FreshDatabase(t *testing.T) {
	s := newTestStorage(t)

	// All migrations recorded.
	applied, err := s.getAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(allMigrations))
}

func TestTour_UpsertIdempotence(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	tour := &Tour{WholesalerID: w.ID, ExternalID: "T-1", Code: "T-1", Name: "Tokyo"}
	require.NoError(t, s.SaveTour(tour))
	firstID := tour.ID

	found, err := s.FindTourByExternalID(w.ID, "T-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, firstID, found.ID)

	// Second pass updates in place.
	found.Name = "Tokyo Lights"
	require.NoError(t, s.SaveTour(found))

	again, err := s.FindTourByExternalID(w.ID, "T-1")
	require.NoError(t, err)
	assert.Equal(t, firstID, again.ID)
	assert.Equal(t, "Tokyo Lights", again.Name)

	count, err := s.CountTours(w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTour_ExternalIDUnique(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	require.NoError(t, s.SaveTour(&Tour{WholesalerID: w.ID, ExternalID: "T-1"}))
	err := s.SaveTour(&Tour{WholesalerID: w.ID, ExternalID: "T-1"})
	assert.Error(t, err)
}

func TestPeriod_FallbackToStartDate(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)
	tour := &Tour{WholesalerID: w.ID, ExternalID: "T-1"}
	require.NoError(t, s.SaveTour(tour))

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SavePeriod(&Period{TourID: tour.ID, StartDate: start, Status: "available"}))

	found, err := s.FindPeriod(tour.ID, "", start)
	require.NoError(t, err)
	require.NotNil(t, found)

	found.Seats = 20
	require.NoError(t, s.SavePeriod(found))

	again, err := s.FindPeriod(tour.ID, "", start)
	require.NoError(t, err)
	assert.Equal(t, found.ID, again.ID)
	assert.Equal(t, 20, again.Seats)
}

func TestItinerary_TriStateMeals(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)
	tour := &Tour{WholesalerID: w.ID, ExternalID: "T-1"}
	require.NoError(t, s.SaveTour(tour))

	yes := true
	require.NoError(t, s.SaveItinerary(&Itinerary{
		TourID: tour.ID, DayNumber: 1, Title: "Arrival",
		Breakfast: &yes, // lunch and dinner unknown
	}))

	found, err := s.FindItinerary(tour.ID, "", 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.Breakfast)
	assert.True(t, *found.Breakfast)
	assert.Nil(t, found.Lunch)
	assert.Nil(t, found.Dinner)
}

func TestReference_FindOrCreateIdempotent(t *testing.T) {
	s := newTestStorage(t)

	first, err := s.FindOrCreateCountry(&Country{Code: "JP", ISO3: "JPN", Name: "Japan"})
	require.NoError(t, err)
	second, err := s.FindOrCreateCountry(&Country{Code: "JP", ISO3: "JPN", Name: "Japan"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Name-only row with a different case still matches.
	third, err := s.FindOrCreateCountry(&Country{Name: "JAPAN"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
}

func TestReference_LookupByCodeAndName(t *testing.T) {
	s := newTestStorage(t)
	created, err := s.FindOrCreateTransport(&Transport{Code: "TG", Name: "Thai Airways"})
	require.NoError(t, err)

	byCode, err := s.FindTransportByCode("tg")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, created.ID, byCode.ID)

	byName, err := s.FindTransportByName("THAI AIRWAYS")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, created.ID, byName.ID)
}

func TestSyncRun_ForwardOnlyTransitions(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	run, err := s.StartSyncRun(w.ID, RunTypeManual)
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)

	require.NoError(t, s.HeartbeatSyncRun(run.RunID))
	got, err := s.GetSyncRun(run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.HeartbeatAt)

	counters := RunCounters{Tours: EntityCounts{Created: 2}}
	require.NoError(t, s.FinishSyncRun(run.RunID, RunStatusCompleted, counters, ""))

	got, err = s.GetSyncRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Counters.Tours.Created)
	require.NotNil(t, got.CompletedAt)

	// Terminal runs never reopen or change status.
	require.NoError(t, s.FinishSyncRun(run.RunID, RunStatusFailed, RunCounters{}, "late"))
	got, err = s.GetSyncRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)

	// Heartbeats after completion are ignored.
	before := *got.HeartbeatAt
	require.NoError(t, s.HeartbeatSyncRun(run.RunID))
	got, err = s.GetSyncRun(run.RunID)
	require.NoError(t, err)
	assert.True(t, got.HeartbeatAt.Equal(before))
}

func TestSyncRun_InvalidTerminalStatus(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)
	run, err := s.StartSyncRun(w.ID, RunTypeManual)
	require.NoError(t, err)

	assert.Error(t, s.FinishSyncRun(run.RunID, RunStatusRunning, RunCounters{}, ""))
}

func TestReaper_Thresholds(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	stale, err := s.StartSyncRun(w.ID, RunTypeIncremental)
	require.NoError(t, err)
	fresh, err := s.StartSyncRun(w.ID, RunTypeIncremental)
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE sync_runs SET heartbeat_at = ? WHERE run_id = ?`,
		time.Now().UTC().Add(-40*time.Minute), stale.RunID)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE sync_runs SET heartbeat_at = ? WHERE run_id = ?`,
		time.Now().UTC().Add(-10*time.Minute), fresh.RunID)
	require.NoError(t, err)

	reaped, err := s.ReapStuckRuns(30*time.Minute, "heartbeat timeout")
	require.NoError(t, err)
	require.Len(t, reaped, 1)
	assert.Equal(t, stale.RunID, reaped[0].RunID)

	got, err := s.GetSyncRun(stale.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusTimeout, got.Status)
	assert.Equal(t, "heartbeat timeout", got.ErrorSummary)

	got, err = s.GetSyncRun(fresh.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
}

func TestReaper_NoHeartbeatJudgedByStart(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	run, err := s.StartSyncRun(w.ID, RunTypeIncremental)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE sync_runs SET started_at = ? WHERE run_id = ?`,
		time.Now().UTC().Add(-2*time.Hour), run.RunID)
	require.NoError(t, err)

	reaped, err := s.ReapStuckRuns(30*time.Minute, "no heartbeat")
	require.NoError(t, err)
	require.Len(t, reaped, 1)
	assert.Equal(t, run.RunID, reaped[0].RunID)
}

func TestCursor_Upsert(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	now := time.Now().UTC()
	require.NoError(t, s.SaveCursor(&SyncCursor{
		WholesalerID: w.ID, SyncType: RunTypeIncremental, Cursor: "page2", LastSyncedAt: &now,
	}))
	require.NoError(t, s.SaveCursor(&SyncCursor{
		WholesalerID: w.ID, SyncType: RunTypeIncremental, Cursor: "page3", LastSyncedAt: &now,
	}))

	c, err := s.GetCursor(w.ID, RunTypeIncremental)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "page3", c.Cursor)

	missing, err := s.GetCursor(w.ID, RunTypeFull)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFieldMapping_ExclusiveSourceConstraint(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	require.NoError(t, s.SaveFieldMapping(&FieldMapping{
		WholesalerID: w.ID, Section: "tour", TargetField: "name", APIPath: "title",
	}))

	// Both sources set violates the check constraint.
	err := s.SaveFieldMapping(&FieldMapping{
		WholesalerID: w.ID, Section: "tour", TargetField: "code",
		APIPath: "id", FixedValue: "fixed",
	})
	assert.Error(t, err)

	// Neither source set is rejected too.
	err = s.SaveFieldMapping(&FieldMapping{
		WholesalerID: w.ID, Section: "tour", TargetField: "code",
	})
	assert.Error(t, err)
}

func TestTx_RollsBackOnError(t *testing.T) {
	s := newTestStorage(t)
	w := seedWholesaler(t, s)

	err := s.Tx(func(tx Repository) error {
		if err := tx.SaveTour(&Tour{WholesalerID: w.ID, ExternalID: "T-1"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	found, err := s.FindTourByExternalID(w.ID, "T-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}
