package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "rivianmate"),
		dbGetEnv("DB_PASSWORD", "rivianmate"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "rivianmate"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_accounts(ctx, conn)
	step2_vehicles(ctx, conn)
	step3_vehicle_states(ctx, conn)
	step4_battery_snapshots(ctx, conn)
	step5_indexes(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
}

func step1_accounts(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: accounts table ──────────────────────")
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS accounts (
			id                 UUID         PRIMARY KEY,
			remote_account_id  TEXT         NOT NULL,
			access_token       TEXT         NOT NULL,
			refresh_token      TEXT         NOT NULL,
			poll_interval_s    INT          NOT NULL DEFAULT 900,
			last_error         TEXT         NOT NULL DEFAULT '',
			last_synced_at     TIMESTAMPTZ,
			disabled           BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
	`, "accounts table")
}

func step2_vehicles(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: vehicles table ──────────────────────")
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicles (
			id                     UUID         PRIMARY KEY,
			account_id             UUID         NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			remote_vehicle_id      TEXT         NOT NULL,
			name                   TEXT         NOT NULL DEFAULT '',
			model_year             INT          NOT NULL DEFAULT 0,
			battery_pack           TEXT         NOT NULL DEFAULT '',
			original_capacity_kwh  DOUBLE PRECISION NOT NULL DEFAULT 0,
			active                 BOOLEAN      NOT NULL DEFAULT TRUE,
			last_error             TEXT         NOT NULL DEFAULT '',
			created_at             TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, remote_vehicle_id)
		);
	`, "vehicles table")
}

func step3_vehicle_states(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: vehicle_states table ────────────────")
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_states (
			vehicle_id             UUID         PRIMARY KEY REFERENCES vehicles(id) ON DELETE CASCADE,
			observed_at            TIMESTAMPTZ  NOT NULL,

			latitude               DOUBLE PRECISION,
			longitude              DOUBLE PRECISION,
			heading                INT,
			speed_mph              DOUBLE PRECISION,

			power_state            TEXT         NOT NULL DEFAULT 'unknown',
			gear_state             TEXT         NOT NULL DEFAULT 'unknown',
			odometer_mi            DOUBLE PRECISION,
			range_mi               DOUBLE PRECISION,

			battery_soc            DOUBLE PRECISION,
			battery_capacity_kwh   DOUBLE PRECISION,
			battery_temp_c         DOUBLE PRECISION,
			twelve_volt_voltage    DOUBLE PRECISION,

			charger_state          TEXT         NOT NULL DEFAULT 'unknown',
			charge_limit_pct       DOUBLE PRECISION,
			charge_power_kw        DOUBLE PRECISION,
			charge_session_kwh     DOUBLE PRECISION,
			minutes_to_charge_end  INT,
			charge_port_closed     BOOLEAN,

			cabin_temp_c           DOUBLE PRECISION,
			outside_temp_c         DOUBLE PRECISION,
			climate_on             BOOLEAN,
			defrost_on             BOOLEAN,
			pet_mode_on            BOOLEAN,

			doors_locked           BOOLEAN,
			frunk_closed           BOOLEAN,
			trunk_closed           BOOLEAN,
			windows_closed         BOOLEAN,
			gear_guard_locked      BOOLEAN,
			alarm_sounding         BOOLEAN,

			tire_pressure_fl       DOUBLE PRECISION,
			tire_pressure_fr       DOUBLE PRECISION,
			tire_pressure_rl       DOUBLE PRECISION,
			tire_pressure_rr       DOUBLE PRECISION,

			firmware_version       TEXT,
			firmware_available     TEXT,
			charger_type           TEXT
		);
	`, "vehicle_states table")
}

func step4_battery_snapshots(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: battery_snapshots table ─────────────")
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS battery_snapshots (
			id            BIGSERIAL    PRIMARY KEY,
			vehicle_id    UUID         NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			taken_at      TIMESTAMPTZ  NOT NULL,
			odometer_mi   DOUBLE PRECISION NOT NULL,
			capacity_kwh  DOUBLE PRECISION NOT NULL,
			original_kwh  DOUBLE PRECISION NOT NULL,
			health_pct    DOUBLE PRECISION NOT NULL,
			confidence    DOUBLE PRECISION NOT NULL
		);
	`, "battery_snapshots table")
}

func step5_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: indexes ─────────────────────────────")
	execOrFatal(ctx, conn,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_account ON vehicles (account_id);`,
		"vehicles account index")
	execOrFatal(ctx, conn,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_vehicle_time ON battery_snapshots (vehicle_id, taken_at);`,
		"snapshots vehicle/time index")
}

func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, what string) {
	if _, err := conn.Exec(ctx, sql); err != nil {
		log.Fatalf("✗ %s failed: %v", what, err)
	}
	fmt.Printf("✓ %s\n", what)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
