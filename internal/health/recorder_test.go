package health

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

type fakeSnapshotStore struct {
	latest   *domain.BatteryHealthSnapshot
	inserted []*domain.BatteryHealthSnapshot
}

func (f *fakeSnapshotStore) LatestSnapshot(_ context.Context, _ string) (*domain.BatteryHealthSnapshot, error) {
	return f.latest, nil
}

func (f *fakeSnapshotStore) InsertSnapshot(_ context.Context, snap *domain.BatteryHealthSnapshot) error {
	f.inserted = append(f.inserted, snap)
	return nil
}

func newTestRecorder(store SnapshotStore) *Recorder {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRecorder(store, log)
}

func fptr(v float64) *float64 { return &v }

func TestConfidenceScoring(t *testing.T) {
	cases := []struct {
		name  string
		soc   *float64
		tempC *float64
		want  float64
	}{
		{"high soc, mild temp", fptr(95), fptr(22), 1.0},
		{"low soc offsets mild temp", fptr(10), fptr(20), 0.5},
		{"high soc, hot pack", fptr(95), fptr(45), 0.6},
		{"mid soc only", fptr(60), nil, 0.6},
		{"both unknown", nil, nil, 0.5},
		{"clamped at floor", fptr(10), fptr(45), 0.1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, Confidence(tc.soc, tc.tempC), 1e-9)
		})
	}
}

func TestMaybeRecordSkipsWithoutCapacity(t *testing.T) {
	store := &fakeSnapshotStore{}
	rec := newTestRecorder(store)

	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), &domain.VehicleState{
		VehicleID: "veh-1",
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.False(t, wrote)
	require.Empty(t, store.inserted)
}

func TestMaybeRecordFirstSnapshot(t *testing.T) {
	store := &fakeSnapshotStore{}
	rec := newTestRecorder(store)

	state := &domain.VehicleState{
		VehicleID:          "veh-1",
		Timestamp:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		BatteryCapacityKwh: fptr(121.5),
		BatterySoc:         fptr(95),
		BatteryTempC:       fptr(22),
		OdometerMi:         fptr(18000),
	}

	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), state)
	require.NoError(t, err)
	require.True(t, wrote)
	require.Len(t, store.inserted, 1)

	snap := store.inserted[0]
	require.Equal(t, "veh-1", snap.VehicleID)
	require.InDelta(t, 90, snap.HealthPct, 1e-9)
	require.InDelta(t, 1.0, snap.Confidence, 1e-9)
	require.InDelta(t, 18000, snap.OdometerMi, 1e-9)
}

func TestMaybeRecordThrottlesWithinAnHour(t *testing.T) {
	store := &fakeSnapshotStore{}
	rec := newTestRecorder(store)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base, 121.5))
	require.NoError(t, err)
	require.True(t, wrote)

	// Thirty minutes later with a 0.2 kWh move: throttled.
	wrote, err = rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base.Add(30*time.Minute), 121.3))
	require.NoError(t, err)
	require.False(t, wrote)

	// Same window but a 1.2 kWh move: recorded despite the throttle.
	wrote, err = rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base.Add(45*time.Minute), 120.3))
	require.NoError(t, err)
	require.True(t, wrote)

	require.Len(t, store.inserted, 2)
}

func TestMaybeRecordAfterGapExpires(t *testing.T) {
	store := &fakeSnapshotStore{}
	rec := newTestRecorder(store)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base, 121.5))
	require.NoError(t, err)

	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base.Add(61*time.Minute), 121.4))
	require.NoError(t, err)
	require.True(t, wrote)
}

func TestMaybeRecordDropsOutOfOrderReadings(t *testing.T) {
	store := &fakeSnapshotStore{}
	rec := newTestRecorder(store)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base, 121.5))
	require.NoError(t, err)

	// Older than the latest snapshot and outside the delta window.
	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), stateAt(base.Add(-2*time.Hour), 119.0))
	require.NoError(t, err)
	require.False(t, wrote)
	require.Len(t, store.inserted, 1)
}

func TestMaybeRecordCarriesOdometerForward(t *testing.T) {
	store := &fakeSnapshotStore{
		latest: &domain.BatteryHealthSnapshot{
			VehicleID:   "veh-1",
			TakenAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			CapacityKwh: 121.5,
			OdometerMi:  17500,
		},
	}
	rec := newTestRecorder(store)

	state := stateAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 121.0)
	state.OdometerMi = nil

	wrote, err := rec.MaybeRecord(context.Background(), testVehicle(), state)
	require.NoError(t, err)
	require.True(t, wrote)
	require.InDelta(t, 17500, store.inserted[0].OdometerMi, 1e-9)
}

func testVehicle() *domain.Vehicle {
	return &domain.Vehicle{
		ID:                  "veh-1",
		OriginalCapacityKwh: 135.0,
	}
}

func stateAt(ts time.Time, capacityKwh float64) *domain.VehicleState {
	return &domain.VehicleState{
		VehicleID:          "veh-1",
		Timestamp:          ts,
		BatteryCapacityKwh: &capacityKwh,
		BatterySoc:         fptr(95),
		BatteryTempC:       fptr(22),
		OdometerMi:         fptr(18000),
	}
}
