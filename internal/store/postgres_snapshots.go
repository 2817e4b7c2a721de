package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// InsertSnapshot appends one immutable capacity snapshot.
func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap *domain.BatteryHealthSnapshot) error {
	query := `
		INSERT INTO battery_snapshots
			(vehicle_id, taken_at, odometer_mi, capacity_kwh, original_kwh,
			 health_pct, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		snap.VehicleID, snap.TakenAt, snap.OdometerMi, snap.CapacityKwh,
		snap.OriginalKwh, snap.HealthPct, snap.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for a vehicle, or nil when
// the series is empty.
func (s *PostgresStore) LatestSnapshot(ctx context.Context, vehicleID string) (*domain.BatteryHealthSnapshot, error) {
	query := `
		SELECT vehicle_id, taken_at, odometer_mi, capacity_kwh, original_kwh,
		       health_pct, confidence
		FROM battery_snapshots
		WHERE vehicle_id = $1
		ORDER BY taken_at DESC
		LIMIT 1
	`
	var snap domain.BatteryHealthSnapshot
	err := s.pool.QueryRow(ctx, query, vehicleID).Scan(
		&snap.VehicleID, &snap.TakenAt, &snap.OdometerMi, &snap.CapacityKwh,
		&snap.OriginalKwh, &snap.HealthPct, &snap.Confidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for %s: %w", vehicleID, err)
	}
	return &snap, nil
}

// ListSnapshots returns the snapshot series for a vehicle in ascending
// time order, optionally bounded by a time range.
func (s *PostgresStore) ListSnapshots(ctx context.Context, vehicleID string, from, to *time.Time) ([]domain.BatteryHealthSnapshot, error) {
	query := `
		SELECT vehicle_id, taken_at, odometer_mi, capacity_kwh, original_kwh,
		       health_pct, confidence
		FROM battery_snapshots
		WHERE vehicle_id = $1
		  AND ($2::timestamptz IS NULL OR taken_at >= $2)
		  AND ($3::timestamptz IS NULL OR taken_at <= $3)
		ORDER BY taken_at
	`
	rows, err := s.pool.Query(ctx, query, vehicleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", vehicleID, err)
	}
	defer rows.Close()

	var snaps []domain.BatteryHealthSnapshot
	for rows.Next() {
		var snap domain.BatteryHealthSnapshot
		if err := rows.Scan(
			&snap.VehicleID, &snap.TakenAt, &snap.OdometerMi, &snap.CapacityKwh,
			&snap.OriginalKwh, &snap.HealthPct, &snap.Confidence,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
