package telemetry

import (
	"time"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

const metersPerMile = 1609.344

// Field is one loosely-typed value from the remote payload. Each field
// carries its own timestamp; absence of a field means "not reported
// this cycle", never false or zero.
type Field struct {
	Value     any
	Timestamp time.Time
}

// Payload is the sparse remote document, keyed by the remote field
// names.
type Payload map[string]Field

// Decode converts a loose remote payload into a typed VehicleState.
// Enumerated fields decode through the tagged parsers below so that an
// unrecognized or missing value lands on the explicit unknown sentinel
// instead of leaking raw strings into the core. The state's timestamp
// is the newest field timestamp in the payload.
func Decode(vehicleID string, p Payload) *domain.VehicleState {
	s := &domain.VehicleState{
		VehicleID:    vehicleID,
		PowerState:   domain.PowerUnknown,
		GearState:    domain.GearUnknown,
		ChargerState: domain.ChargerUnknown,
	}

	for name, f := range p {
		if f.Timestamp.After(s.Timestamp) {
			s.Timestamp = f.Timestamp
		}
		switch name {
		case "gnssLocationLatitude":
			s.Latitude = asFloat(f.Value)
		case "gnssLocationLongitude":
			s.Longitude = asFloat(f.Value)
		case "gnssBearing":
			s.Heading = asInt(f.Value)
		case "speed":
			s.SpeedMph = asFloat(f.Value)
		case "powerState":
			s.PowerState = ParsePowerState(asString(f.Value))
		case "gearStatus":
			s.GearState = ParseGearState(asString(f.Value))
		case "vehicleMileage":
			// Reported in meters.
			if m := asFloat(f.Value); m != nil {
				mi := *m / metersPerMile
				s.OdometerMi = &mi
			}
		case "distanceToEmpty":
			s.RangeMi = asFloat(f.Value)
		case "batteryLevel":
			s.BatterySoc = asFloat(f.Value)
		case "batteryCapacity":
			s.BatteryCapacityKwh = asFloat(f.Value)
		case "batteryCellTemp":
			s.BatteryTempC = asFloat(f.Value)
		case "twelveVoltBatteryVoltage":
			s.TwelveVoltVoltage = asFloat(f.Value)
		case "chargerState":
			s.ChargerState = ParseChargerState(asString(f.Value))
		case "batteryLimit":
			s.ChargeLimitPct = asFloat(f.Value)
		case "chargerPower":
			s.ChargePowerKw = asFloat(f.Value)
		case "chargingEnergyDelivered":
			s.ChargeSessionKwh = asFloat(f.Value)
		case "timeToEndOfCharge":
			s.MinutesToChargeEnd = asInt(f.Value)
		case "chargePortState":
			s.ChargePortClosed = asClosed(f.Value)
		case "cabinClimateInteriorTemperature":
			s.CabinTempC = asFloat(f.Value)
		case "outsideTemperature":
			s.OutsideTempC = asFloat(f.Value)
		case "cabinPreconditioningStatus":
			s.ClimateOn = asOn(f.Value)
		case "defrostDefogStatus":
			s.DefrostOn = asOn(f.Value)
		case "petModeStatus":
			s.PetModeOn = asOn(f.Value)
		case "doorFrontLeftLocked":
			s.DoorsLocked = asBool(f.Value)
		case "closureFrunkClosed":
			s.FrunkClosed = asClosedBool(f.Value)
		case "closureLiftgateClosed":
			s.TrunkClosed = asClosedBool(f.Value)
		case "windowsClosed":
			s.WindowsClosed = asClosedBool(f.Value)
		case "gearGuardLocked":
			s.GearGuardLocked = asBool(f.Value)
		case "alarmSoundStatus":
			s.AlarmSounding = asOn(f.Value)
		case "tirePressureFrontLeft":
			s.TirePressureFL = asFloat(f.Value)
		case "tirePressureFrontRight":
			s.TirePressureFR = asFloat(f.Value)
		case "tirePressureRearLeft":
			s.TirePressureRL = asFloat(f.Value)
		case "tirePressureRearRight":
			s.TirePressureRR = asFloat(f.Value)
		case "otaCurrentVersion":
			s.FirmwareVersion = asStringPtr(f.Value)
		case "otaAvailableVersion":
			s.FirmwareAvailable = asStringPtr(f.Value)
		case "chargerType":
			s.ChargerType = asStringPtr(f.Value)
		}
	}
	return s
}

// ParsePowerState maps the remote power-state strings onto the tagged
// enum, defaulting to unknown.
func ParsePowerState(v string) domain.PowerState {
	switch v {
	case "sleep":
		return domain.PowerSleep
	case "standby":
		return domain.PowerStandby
	case "monitor":
		return domain.PowerMonitor
	case "ready":
		return domain.PowerReady
	case "go":
		return domain.PowerGo
	case "charging":
		return domain.PowerCharging
	case "remote":
		return domain.PowerRemoteUse
	default:
		return domain.PowerUnknown
	}
}

func ParseGearState(v string) domain.GearState {
	switch v {
	case "park":
		return domain.GearPark
	case "reverse":
		return domain.GearReverse
	case "neutral":
		return domain.GearNeutral
	case "drive":
		return domain.GearDrive
	default:
		return domain.GearUnknown
	}
}

func ParseChargerState(v string) domain.ChargerState {
	switch v {
	case "unplugged", "disconnected":
		return domain.ChargerDisconnected
	case "plugged_in", "connected":
		return domain.ChargerConnected
	case "charging_active", "charging":
		return domain.ChargerCharging
	case "charging_complete", "complete":
		return domain.ChargerComplete
	default:
		return domain.ChargerUnknown
	}
}

func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}

func asInt(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	}
	return nil
}

func asBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asStringPtr(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

// asOn decodes the remote's "on"/"off" status strings.
func asOn(v any) *bool {
	switch s := v.(type) {
	case string:
		b := s == "on" || s == "sounding" || s == "active"
		return &b
	case bool:
		return &s
	}
	return nil
}

// asClosed decodes "open"/"closed" closure strings as closed booleans.
func asClosed(v any) *bool {
	if s, ok := v.(string); ok {
		b := s == "closed"
		return &b
	}
	return nil
}

func asClosedBool(v any) *bool {
	switch s := v.(type) {
	case bool:
		return &s
	case string:
		b := s == "closed"
		return &b
	}
	return nil
}
