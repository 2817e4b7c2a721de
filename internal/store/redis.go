package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rawsignal/RivianMate-sub001/internal/config"
	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// RedisStore mirrors the latest canonical state for cheap dashboard
// reads and fans updates out over pubsub. It is a cache, never the
// source of truth.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// MirrorState writes the hot fields of a canonical state into a
// per-vehicle hash and publishes the full document on the account's
// telemetry channel.
func (r *RedisStore) MirrorState(ctx context.Context, accountID string, st *domain.VehicleState) error {
	hot := map[string]interface{}{
		"vehicle_id":    st.VehicleID,
		"power_state":   string(st.PowerState),
		"gear_state":    string(st.GearState),
		"charger_state": string(st.ChargerState),
		"observed_at":   st.Timestamp.Unix(),
	}
	if st.BatterySoc != nil {
		hot["battery_soc"] = *st.BatterySoc
	}
	if st.RangeMi != nil {
		hot["range_mi"] = *st.RangeMi
	}
	if st.OdometerMi != nil {
		hot["odometer_mi"] = *st.OdometerMi
	}
	if st.ChargePowerKw != nil {
		hot["charge_power_kw"] = *st.ChargePowerKw
	}
	if st.Latitude != nil && st.Longitude != nil {
		hot["lat"] = *st.Latitude
		hot["lng"] = *st.Longitude
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("vehicle:%s:state", st.VehicleID)
	channel := TelemetryChannel(accountID)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, stateKey, hot)
	pipe.Expire(ctx, stateKey, 24*time.Hour)
	pipe.Publish(ctx, channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// TelemetryChannel names the pubsub channel carrying an account's state
// updates.
func TelemetryChannel(accountID string) string {
	return fmt.Sprintf("account:%s:telemetry", accountID)
}

// SubscribeTelemetry opens a pubsub subscription on an account's
// telemetry channel. The caller owns closing it.
func (r *RedisStore) SubscribeTelemetry(ctx context.Context, accountID string) *redis.PubSub {
	return r.client.Subscribe(ctx, TelemetryChannel(accountID))
}

// GetAPIKey resolves an API key to its owning principal, empty when
// unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("apikey:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}
