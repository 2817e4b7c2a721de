package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

func TestDecodeTypicalPayload(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Payload{
		"batteryLevel":          {Value: 81.5, Timestamp: base},
		"vehicleMileage":        {Value: 32186.88, Timestamp: base}, // meters
		"powerState":            {Value: "ready", Timestamp: base.Add(time.Second)},
		"gearStatus":            {Value: "park", Timestamp: base},
		"chargerState":          {Value: "unplugged", Timestamp: base},
		"gnssLocationLatitude":  {Value: 40.7128, Timestamp: base},
		"gnssLocationLongitude": {Value: -74.006, Timestamp: base},
		"chargePortState":       {Value: "closed", Timestamp: base},
		"cabinPreconditioningStatus": {Value: "on", Timestamp: base},
	}

	s := Decode("veh-1", p)
	require.Equal(t, "veh-1", s.VehicleID)
	require.Equal(t, base.Add(time.Second), s.Timestamp, "state timestamp is the newest field timestamp")

	require.NotNil(t, s.BatterySoc)
	require.InDelta(t, 81.5, *s.BatterySoc, 1e-9)

	require.NotNil(t, s.OdometerMi)
	require.InDelta(t, 20.0, *s.OdometerMi, 1e-9, "mileage converts from meters to miles")

	require.Equal(t, domain.PowerReady, s.PowerState)
	require.Equal(t, domain.GearPark, s.GearState)
	require.Equal(t, domain.ChargerDisconnected, s.ChargerState)

	require.NotNil(t, s.ChargePortClosed)
	require.True(t, *s.ChargePortClosed)
	require.NotNil(t, s.ClimateOn)
	require.True(t, *s.ClimateOn)

	require.Nil(t, s.CabinTempC, "unreported fields stay nil")
	require.Nil(t, s.FirmwareVersion)
}

func TestDecodeUnrecognizedEnumsFallToUnknown(t *testing.T) {
	p := Payload{
		"powerState":   {Value: "hyperdrive", Timestamp: time.Now()},
		"gearStatus":   {Value: 7, Timestamp: time.Now()},
		"chargerState": {Value: "", Timestamp: time.Now()},
	}

	s := Decode("veh-1", p)
	require.Equal(t, domain.PowerUnknown, s.PowerState)
	require.Equal(t, domain.GearUnknown, s.GearState)
	require.Equal(t, domain.ChargerUnknown, s.ChargerState)
}

func TestDecodeEmptyPayload(t *testing.T) {
	s := Decode("veh-1", Payload{})
	require.Equal(t, domain.PowerUnknown, s.PowerState)
	require.Equal(t, domain.GearUnknown, s.GearState)
	require.Equal(t, domain.ChargerUnknown, s.ChargerState)
	require.Nil(t, s.BatterySoc)
	require.True(t, s.Timestamp.IsZero())
}

func TestDecodeNumericCoercion(t *testing.T) {
	p := Payload{
		"batteryLevel": {Value: 80, Timestamp: time.Now()}, // int, not float
		"gnssBearing":  {Value: 270.0, Timestamp: time.Now()},
	}

	s := Decode("veh-1", p)
	require.NotNil(t, s.BatterySoc)
	require.InDelta(t, 80, *s.BatterySoc, 1e-9)
	require.NotNil(t, s.Heading)
	require.Equal(t, 270, *s.Heading)
}

func TestParseChargerStateAliases(t *testing.T) {
	require.Equal(t, domain.ChargerDisconnected, ParseChargerState("disconnected"))
	require.Equal(t, domain.ChargerConnected, ParseChargerState("plugged_in"))
	require.Equal(t, domain.ChargerCharging, ParseChargerState("charging"))
	require.Equal(t, domain.ChargerComplete, ParseChargerState("complete"))
}

func TestLooksLikeExpiredAuth(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"plain 401", &APIError{StatusCode: 401, Message: "unauthorized"}, true},
		{"403 with token phrasing", &APIError{StatusCode: 403, Message: "Token expired"}, true},
		{"403 without token phrasing", &APIError{StatusCode: 403, Message: "forbidden region"}, false},
		{"500", &APIError{StatusCode: 500, Message: "internal"}, false},
		{"unstructured session expiry", errors.New("rpc error: session expired for subject"), true},
		{"unstructured unrelated", errors.New("connection reset by peer"), false},
		{"nil", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, LooksLikeExpiredAuth(tc.err))
		})
	}
}

func TestRetryAfterFallback(t *testing.T) {
	require.Equal(t, 5*time.Minute, RetryAfter(&RateLimitError{RetryAfter: 5 * time.Minute}, time.Minute))
	require.Equal(t, time.Minute, RetryAfter(&RateLimitError{}, time.Minute), "a throttle without a hint uses the default")
	require.Equal(t, time.Minute, RetryAfter(errors.New("boom"), time.Minute))
}

func TestIsRateLimitedUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("fetch state: %w", &RateLimitError{RetryAfter: time.Second})
	require.True(t, IsRateLimited(wrapped))
	require.False(t, IsRateLimited(errors.New("boom")))
}
