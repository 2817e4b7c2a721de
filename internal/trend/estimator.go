package trend

import (
	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// WarrantyThresholdPct is the battery-health level the degradation
// projection is anchored to.
const WarrantyThresholdPct = 70.0

// Point is one capacity observation: odometer miles, derived health
// percent, and the [0,1] confidence weight it carries.
type Point struct {
	OdometerMi float64
	HealthPct  float64
	Weight     float64
}

// Fit computes a confidence-weighted least-squares line through the
// points. When the system is degenerate (a single point, or every point
// at the same odometer) it returns slope 0 and the weighted mean health
// as the intercept, falling back to the simple mean when all weights
// are zero. It is defined for any input and never divides by zero.
func Fit(points []Point) (slope, intercept float64) {
	if len(points) == 0 {
		return 0, 0
	}

	var w, wx, wy, wx2, wxy float64
	for _, p := range points {
		w += p.Weight
		wx += p.Weight * p.OdometerMi
		wy += p.Weight * p.HealthPct
		wx2 += p.Weight * p.OdometerMi * p.OdometerMi
		wxy += p.Weight * p.OdometerMi * p.HealthPct
	}

	denom := w*wx2 - wx*wx
	if denom == 0 {
		return 0, meanHealth(points, w, wy)
	}

	slope = (w*wxy - wx*wy) / denom
	intercept = (wy - slope*wx) / w
	return slope, intercept
}

func meanHealth(points []Point, w, wy float64) float64 {
	if w > 0 {
		return wy / w
	}
	var sum float64
	for _, p := range points {
		sum += p.HealthPct
	}
	return sum / float64(len(points))
}

// ProjectHealth evaluates the fitted line at a future odometer reading.
func ProjectHealth(slope, intercept, odometerMi float64) float64 {
	return intercept + slope*odometerMi
}

// MilesToThreshold returns the odometer reading at which the fitted
// line crosses threshold. It is defined only for a negative slope;
// otherwise the second return is false.
func MilesToThreshold(slope, intercept, threshold float64) (float64, bool) {
	if slope >= 0 {
		return 0, false
	}
	return (threshold - intercept) / slope, true
}

// Compute builds the full trend model from a snapshot series. Apparent
// capacity increases (a recalibrating BMS) surface as a positive slope
// and are reported as-is, not clamped.
func Compute(snapshots []domain.BatteryHealthSnapshot) domain.Trend {
	points := make([]Point, 0, len(snapshots))
	var latestOdo float64
	for _, s := range snapshots {
		points = append(points, Point{
			OdometerMi: s.OdometerMi,
			HealthPct:  s.HealthPct,
			Weight:     s.Confidence,
		})
		if s.OdometerMi > latestOdo {
			latestOdo = s.OdometerMi
		}
	}

	slope, intercept := Fit(points)

	t := domain.Trend{
		Slope:                 slope,
		Intercept:             intercept,
		HealthPercentNow:      ProjectHealth(slope, intercept, latestOdo),
		DegradationRatePer10k: slope * 10000,
		ProjectedAt100k:       ProjectHealth(slope, intercept, 100000),
		ProjectedAt150k:       ProjectHealth(slope, intercept, 150000),
		Samples:               len(points),
	}

	if miles, ok := MilesToThreshold(slope, intercept, WarrantyThresholdPct); ok {
		t.MilesToWarrantyThreshold = &miles
	}
	return t
}
