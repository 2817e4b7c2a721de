package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawsignal/RivianMate-sub001/internal/config"
	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- accounts ---

func (s *PostgresStore) UpsertAccount(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts
			(id, remote_account_id, access_token, refresh_token, poll_interval_s,
			 last_error, last_synced_at, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			poll_interval_s = EXCLUDED.poll_interval_s,
			last_error = EXCLUDED.last_error,
			last_synced_at = EXCLUDED.last_synced_at,
			disabled = EXCLUDED.disabled,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.RemoteAccountID, a.AccessToken, a.RefreshToken,
		int(a.PollInterval.Seconds()), a.LastError, a.LastSyncedAt, a.Disabled,
	)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, remote_account_id, access_token, refresh_token, poll_interval_s,
		       last_error, last_synced_at, disabled, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	var a domain.Account
	var intervalS int
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.RemoteAccountID, &a.AccessToken, &a.RefreshToken, &intervalS,
		&a.LastError, &a.LastSyncedAt, &a.Disabled, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	a.PollInterval = time.Duration(intervalS) * time.Second
	return &a, nil
}

func (s *PostgresStore) ListActiveAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `
		SELECT id, remote_account_id, access_token, refresh_token, poll_interval_s,
		       last_error, last_synced_at, disabled, created_at, updated_at
		FROM accounts WHERE NOT disabled ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		var intervalS int
		if err := rows.Scan(
			&a.ID, &a.RemoteAccountID, &a.AccessToken, &a.RefreshToken, &intervalS,
			&a.LastError, &a.LastSyncedAt, &a.Disabled, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.PollInterval = time.Duration(intervalS) * time.Second
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) SetAccountError(ctx context.Context, id, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_error = $2, updated_at = NOW() WHERE id = $1`,
		id, message,
	)
	return err
}

func (s *PostgresStore) SetAccountSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_synced_at = $2, last_error = '', updated_at = NOW() WHERE id = $1`,
		id, at,
	)
	return err
}

func (s *PostgresStore) DisableAccount(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET disabled = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// --- vehicles ---

func (s *PostgresStore) UpsertVehicle(ctx context.Context, v *domain.Vehicle) error {
	query := `
		INSERT INTO vehicles
			(id, account_id, remote_vehicle_id, name, model_year, battery_pack,
			 original_capacity_kwh, active, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (account_id, remote_vehicle_id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active
	`
	_, err := s.pool.Exec(ctx, query,
		v.ID, v.AccountID, v.RemoteVehicleID, v.Name, v.ModelYear,
		v.BatteryPack, v.OriginalCapacityKwh, v.Active, v.LastError,
	)
	return err
}

func (s *PostgresStore) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `
		SELECT id, account_id, remote_vehicle_id, name, model_year, battery_pack,
		       original_capacity_kwh, active, last_error, created_at
		FROM vehicles WHERE id = $1
	`
	var v domain.Vehicle
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.AccountID, &v.RemoteVehicleID, &v.Name, &v.ModelYear,
		&v.BatteryPack, &v.OriginalCapacityKwh, &v.Active, &v.LastError, &v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return &v, nil
}

func (s *PostgresStore) ListVehicles(ctx context.Context, accountID string) ([]*domain.Vehicle, error) {
	query := `
		SELECT id, account_id, remote_vehicle_id, name, model_year, battery_pack,
		       original_capacity_kwh, active, last_error, created_at
		FROM vehicles WHERE account_id = $1 ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles for %s: %w", accountID, err)
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(
			&v.ID, &v.AccountID, &v.RemoteVehicleID, &v.Name, &v.ModelYear,
			&v.BatteryPack, &v.OriginalCapacityKwh, &v.Active, &v.LastError, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) SetVehicleError(ctx context.Context, id, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE vehicles SET last_error = $2 WHERE id = $1`,
		id, message,
	)
	return err
}

func (s *PostgresStore) DeactivateVehicle(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE vehicles SET active = FALSE WHERE id = $1`,
		id,
	)
	return err
}
