package health

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

const (
	// minSnapshotGap throttles recording per vehicle.
	minSnapshotGap = time.Hour

	// capacityDeltaKwh short-circuits the throttle when the reported
	// capacity moved enough to be worth keeping.
	capacityDeltaKwh = 0.5
)

// SnapshotStore is the slice of persistence the recorder needs.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, vehicleID string) (*domain.BatteryHealthSnapshot, error)
	InsertSnapshot(ctx context.Context, snap *domain.BatteryHealthSnapshot) error
}

// Recorder samples merged canonical state at a bounded rate, scores a
// confidence from operating conditions, and appends to the immutable
// capacity-snapshot series.
type Recorder struct {
	store SnapshotStore
	log   *logrus.Entry

	mu     sync.Mutex
	latest map[string]*domain.BatteryHealthSnapshot
}

func NewRecorder(store SnapshotStore, log *logrus.Logger) *Recorder {
	return &Recorder{
		store:  store,
		log:    log.WithField("component", "health"),
		latest: make(map[string]*domain.BatteryHealthSnapshot),
	}
}

// MaybeRecord appends a capacity snapshot for the vehicle if the state
// carries a reported capacity and either no prior snapshot exists, the
// latest one is older than an hour, or capacity moved by more than
// half a kWh. It reports whether a snapshot was written.
func (r *Recorder) MaybeRecord(ctx context.Context, vehicle *domain.Vehicle, state *domain.VehicleState) (bool, error) {
	if state.BatteryCapacityKwh == nil {
		return false, nil
	}

	last, err := r.latestFor(ctx, vehicle.ID)
	if err != nil {
		return false, err
	}

	capacity := *state.BatteryCapacityKwh
	if last != nil {
		age := state.Timestamp.Sub(last.TakenAt)
		if age <= minSnapshotGap && math.Abs(capacity-last.CapacityKwh) <= capacityDeltaKwh {
			return false, nil
		}
		// Series timestamps are non-decreasing; drop out-of-order arrivals.
		if state.Timestamp.Before(last.TakenAt) {
			return false, nil
		}
	}

	snap := &domain.BatteryHealthSnapshot{
		VehicleID:   vehicle.ID,
		TakenAt:     state.Timestamp,
		CapacityKwh: capacity,
		OriginalKwh: vehicle.OriginalCapacityKwh,
		Confidence:  Confidence(state.BatterySoc, state.BatteryTempC),
	}
	if state.OdometerMi != nil {
		snap.OdometerMi = *state.OdometerMi
	} else if last != nil {
		snap.OdometerMi = last.OdometerMi
	}
	if vehicle.OriginalCapacityKwh > 0 {
		snap.HealthPct = capacity / vehicle.OriginalCapacityKwh * 100
	}

	if err := r.store.InsertSnapshot(ctx, snap); err != nil {
		return false, fmt.Errorf("insert snapshot for %s: %w", vehicle.ID, err)
	}

	r.mu.Lock()
	r.latest[vehicle.ID] = snap
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"vehicle":    vehicle.ID,
		"capacity":   capacity,
		"health":     snap.HealthPct,
		"confidence": snap.Confidence,
	}).Debug("recorded battery snapshot")
	return true, nil
}

func (r *Recorder) latestFor(ctx context.Context, vehicleID string) (*domain.BatteryHealthSnapshot, error) {
	r.mu.Lock()
	if snap, ok := r.latest[vehicleID]; ok {
		r.mu.Unlock()
		return snap, nil
	}
	r.mu.Unlock()

	snap, err := r.store.LatestSnapshot(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot for %s: %w", vehicleID, err)
	}
	if snap != nil {
		r.mu.Lock()
		r.latest[vehicleID] = snap
		r.mu.Unlock()
	}
	return snap, nil
}

// Confidence scores how trustworthy a capacity reading is given the
// charge level and battery temperature it was taken at. BMS-reported
// capacity drifts at charge and temperature extremes, so those readings
// are down-weighted rather than discarded, keeping the series evenly
// populated for trend fitting. The result is clamped to [0.1, 1.0].
func Confidence(soc, tempC *float64) float64 {
	score := 0.5

	if soc != nil {
		switch {
		case *soc >= 90:
			score += 0.3
		case *soc >= 50 && *soc < 70:
			score += 0.1
		case *soc < 20:
			score -= 0.2
		}
	}

	if tempC != nil {
		switch {
		case *tempC >= 15 && *tempC <= 30:
			score += 0.2
		case *tempC < 5 || *tempC > 40:
			score -= 0.2
		}
	}

	return math.Min(1.0, math.Max(0.1, score))
}
