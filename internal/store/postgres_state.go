package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

var stateColumns = []string{
	"vehicle_id",
	"observed_at",
	"latitude",
	"longitude",
	"heading",
	"speed_mph",
	"power_state",
	"gear_state",
	"odometer_mi",
	"range_mi",
	"battery_soc",
	"battery_capacity_kwh",
	"battery_temp_c",
	"twelve_volt_voltage",
	"charger_state",
	"charge_limit_pct",
	"charge_power_kw",
	"charge_session_kwh",
	"minutes_to_charge_end",
	"charge_port_closed",
	"cabin_temp_c",
	"outside_temp_c",
	"climate_on",
	"defrost_on",
	"pet_mode_on",
	"doors_locked",
	"frunk_closed",
	"trunk_closed",
	"windows_closed",
	"gear_guard_locked",
	"alarm_sounding",
	"tire_pressure_fl",
	"tire_pressure_fr",
	"tire_pressure_rl",
	"tire_pressure_rr",
	"firmware_version",
	"firmware_available",
	"charger_type",
}

func stateValues(st *domain.VehicleState) []any {
	return []any{
		st.VehicleID,
		st.Timestamp,
		st.Latitude,
		st.Longitude,
		st.Heading,
		st.SpeedMph,
		string(st.PowerState),
		string(st.GearState),
		st.OdometerMi,
		st.RangeMi,
		st.BatterySoc,
		st.BatteryCapacityKwh,
		st.BatteryTempC,
		st.TwelveVoltVoltage,
		string(st.ChargerState),
		st.ChargeLimitPct,
		st.ChargePowerKw,
		st.ChargeSessionKwh,
		st.MinutesToChargeEnd,
		st.ChargePortClosed,
		st.CabinTempC,
		st.OutsideTempC,
		st.ClimateOn,
		st.DefrostOn,
		st.PetModeOn,
		st.DoorsLocked,
		st.FrunkClosed,
		st.TrunkClosed,
		st.WindowsClosed,
		st.GearGuardLocked,
		st.AlarmSounding,
		st.TirePressureFL,
		st.TirePressureFR,
		st.TirePressureRL,
		st.TirePressureRR,
		st.FirmwareVersion,
		st.FirmwareAvailable,
		st.ChargerType,
	}
}

// upsertStateQuery is built once; the vehicle_id conflict target makes
// concurrent writers converge on one row instead of duplicating
// history.
var upsertStateQuery = func() string {
	cols := ""
	placeholders := ""
	updates := ""
	for i, c := range stateColumns {
		if i > 0 {
			cols += ", "
			placeholders += ", "
		}
		cols += c
		placeholders += fmt.Sprintf("$%d", i+1)
		if i > 0 { // skip vehicle_id in the update set
			if i > 1 {
				updates += ", "
			}
			updates += fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		}
	}
	return fmt.Sprintf(
		`INSERT INTO vehicle_states (%s) VALUES (%s)
		 ON CONFLICT (vehicle_id) DO UPDATE SET %s`,
		cols, placeholders, updates,
	)
}()

// UpsertVehicleState writes the canonical merged state, exactly one row
// per vehicle.
func (s *PostgresStore) UpsertVehicleState(ctx context.Context, st *domain.VehicleState) error {
	_, err := s.pool.Exec(ctx, upsertStateQuery, stateValues(st)...)
	if err != nil {
		return fmt.Errorf("upsert state for %s: %w", st.VehicleID, err)
	}
	return nil
}

// GetVehicleState reads the canonical state for one vehicle.
func (s *PostgresStore) GetVehicleState(ctx context.Context, vehicleID string) (*domain.VehicleState, error) {
	query := `
		SELECT observed_at, latitude, longitude, heading, speed_mph,
		       power_state, gear_state, odometer_mi, range_mi,
		       battery_soc, battery_capacity_kwh, battery_temp_c, twelve_volt_voltage,
		       charger_state, charge_limit_pct, charge_power_kw, charge_session_kwh,
		       minutes_to_charge_end, charge_port_closed,
		       cabin_temp_c, outside_temp_c, climate_on, defrost_on, pet_mode_on,
		       doors_locked, frunk_closed, trunk_closed, windows_closed,
		       gear_guard_locked, alarm_sounding,
		       tire_pressure_fl, tire_pressure_fr, tire_pressure_rl, tire_pressure_rr,
		       firmware_version, firmware_available, charger_type
		FROM vehicle_states WHERE vehicle_id = $1
	`
	st := &domain.VehicleState{VehicleID: vehicleID}
	var power, gear, charger string
	err := s.pool.QueryRow(ctx, query, vehicleID).Scan(
		&st.Timestamp, &st.Latitude, &st.Longitude, &st.Heading, &st.SpeedMph,
		&power, &gear, &st.OdometerMi, &st.RangeMi,
		&st.BatterySoc, &st.BatteryCapacityKwh, &st.BatteryTempC, &st.TwelveVoltVoltage,
		&charger, &st.ChargeLimitPct, &st.ChargePowerKw, &st.ChargeSessionKwh,
		&st.MinutesToChargeEnd, &st.ChargePortClosed,
		&st.CabinTempC, &st.OutsideTempC, &st.ClimateOn, &st.DefrostOn, &st.PetModeOn,
		&st.DoorsLocked, &st.FrunkClosed, &st.TrunkClosed, &st.WindowsClosed,
		&st.GearGuardLocked, &st.AlarmSounding,
		&st.TirePressureFL, &st.TirePressureFR, &st.TirePressureRL, &st.TirePressureRR,
		&st.FirmwareVersion, &st.FirmwareAvailable, &st.ChargerType,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get state for %s: %w", vehicleID, err)
	}
	st.PowerState = domain.PowerState(power)
	st.GearState = domain.GearState(gear)
	st.ChargerState = domain.ChargerState(charger)
	return st, nil
}
