package domain

import "time"

// BatteryHealthSnapshot is a single immutable capacity reading.
// Snapshots are append-only and ordered by TakenAt per vehicle.
type BatteryHealthSnapshot struct {
	VehicleID   string
	TakenAt     time.Time
	OdometerMi  float64
	CapacityKwh float64
	OriginalKwh float64
	HealthPct   float64
	Confidence  float64
}

// Trend is the derived degradation model, recomputed from the snapshot
// series on read and never persisted.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`

	HealthPercentNow      float64 `json:"health_percent_now"`
	DegradationRatePer10k float64 `json:"degradation_rate_per_10k"`
	ProjectedAt100k       float64 `json:"projected_at_100k"`
	ProjectedAt150k       float64 `json:"projected_at_150k"`

	// MilesToWarrantyThreshold is nil when the fitted slope is not
	// negative (no crossing exists).
	MilesToWarrantyThreshold *float64 `json:"miles_to_warranty_threshold"`

	Samples int `json:"samples"`
}
