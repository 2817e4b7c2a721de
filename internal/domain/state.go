package domain

import "time"

// PowerState is the vehicle's reported drive/power mode. Unknown is the
// explicit null marker for all three enumerations: a payload that does
// not report the field decodes to Unknown, never to a zero guess.
type PowerState string

const (
	PowerUnknown   PowerState = "unknown"
	PowerSleep     PowerState = "sleep"
	PowerStandby   PowerState = "standby"
	PowerMonitor   PowerState = "monitor"
	PowerReady     PowerState = "ready"
	PowerGo        PowerState = "go"
	PowerCharging  PowerState = "charging_power"
	PowerRemoteUse PowerState = "remote_use"
)

type GearState string

const (
	GearUnknown GearState = "unknown"
	GearPark    GearState = "park"
	GearReverse GearState = "reverse"
	GearNeutral GearState = "neutral"
	GearDrive   GearState = "drive"
)

type ChargerState string

const (
	ChargerUnknown      ChargerState = "unknown"
	ChargerDisconnected ChargerState = "disconnected"
	ChargerConnected    ChargerState = "connected"
	ChargerCharging     ChargerState = "charging_active"
	ChargerComplete     ChargerState = "charging_complete"
)

// VehicleState is the canonical merged snapshot of one vehicle's
// telemetry. Every field is independently nullable; pointers are nil
// when the value has never been reported. Mutated only by the merge
// buffer.
type VehicleState struct {
	VehicleID string
	Timestamp time.Time

	// Position
	Latitude  *float64
	Longitude *float64
	Heading   *int
	SpeedMph  *float64

	// Drivetrain
	PowerState   PowerState
	GearState    GearState
	OdometerMi   *float64
	RangeMi      *float64

	// Battery
	BatterySoc         *float64
	BatteryCapacityKwh *float64
	BatteryTempC       *float64
	TwelveVoltVoltage  *float64

	// Charging
	ChargerState        ChargerState
	ChargeLimitPct      *float64
	ChargePowerKw       *float64
	ChargeSessionKwh    *float64
	MinutesToChargeEnd  *int
	ChargePortClosed    *bool

	// Climate
	CabinTempC   *float64
	OutsideTempC *float64
	ClimateOn    *bool
	DefrostOn    *bool
	PetModeOn    *bool

	// Closures and security
	DoorsLocked      *bool
	FrunkClosed      *bool
	TrunkClosed      *bool
	WindowsClosed    *bool
	GearGuardLocked  *bool
	AlarmSounding    *bool

	// Tires (psi)
	TirePressureFL *float64
	TirePressureFR *float64
	TirePressureRL *float64
	TirePressureRR *float64

	// Software
	FirmwareVersion   *string
	FirmwareAvailable *string
	ChargerType       *string
}

// Clone returns a shallow-safe copy: pointer fields are re-boxed so the
// copy can outlive mutation of the original.
func (s *VehicleState) Clone() *VehicleState {
	if s == nil {
		return nil
	}
	c := *s
	c.Latitude = cloneFloat(s.Latitude)
	c.Longitude = cloneFloat(s.Longitude)
	c.Heading = cloneInt(s.Heading)
	c.SpeedMph = cloneFloat(s.SpeedMph)
	c.OdometerMi = cloneFloat(s.OdometerMi)
	c.RangeMi = cloneFloat(s.RangeMi)
	c.BatterySoc = cloneFloat(s.BatterySoc)
	c.BatteryCapacityKwh = cloneFloat(s.BatteryCapacityKwh)
	c.BatteryTempC = cloneFloat(s.BatteryTempC)
	c.TwelveVoltVoltage = cloneFloat(s.TwelveVoltVoltage)
	c.ChargeLimitPct = cloneFloat(s.ChargeLimitPct)
	c.ChargePowerKw = cloneFloat(s.ChargePowerKw)
	c.ChargeSessionKwh = cloneFloat(s.ChargeSessionKwh)
	c.MinutesToChargeEnd = cloneInt(s.MinutesToChargeEnd)
	c.ChargePortClosed = cloneBool(s.ChargePortClosed)
	c.CabinTempC = cloneFloat(s.CabinTempC)
	c.OutsideTempC = cloneFloat(s.OutsideTempC)
	c.ClimateOn = cloneBool(s.ClimateOn)
	c.DefrostOn = cloneBool(s.DefrostOn)
	c.PetModeOn = cloneBool(s.PetModeOn)
	c.DoorsLocked = cloneBool(s.DoorsLocked)
	c.FrunkClosed = cloneBool(s.FrunkClosed)
	c.TrunkClosed = cloneBool(s.TrunkClosed)
	c.WindowsClosed = cloneBool(s.WindowsClosed)
	c.GearGuardLocked = cloneBool(s.GearGuardLocked)
	c.AlarmSounding = cloneBool(s.AlarmSounding)
	c.TirePressureFL = cloneFloat(s.TirePressureFL)
	c.TirePressureFR = cloneFloat(s.TirePressureFR)
	c.TirePressureRL = cloneFloat(s.TirePressureRL)
	c.TirePressureRR = cloneFloat(s.TirePressureRR)
	c.FirmwareVersion = cloneString(s.FirmwareVersion)
	c.FirmwareAvailable = cloneString(s.FirmwareAvailable)
	c.ChargerType = cloneString(s.ChargerType)
	return &c
}

// PresenceVector reports, field by field, whether each nullable value
// is currently known. Two states with differing vectors have had a
// value appear or disappear, which the dedup filter always treats as
// significant.
func (s *VehicleState) PresenceVector() []bool {
	return []bool{
		s.Latitude != nil,
		s.Longitude != nil,
		s.Heading != nil,
		s.SpeedMph != nil,
		s.OdometerMi != nil,
		s.RangeMi != nil,
		s.BatterySoc != nil,
		s.BatteryCapacityKwh != nil,
		s.BatteryTempC != nil,
		s.TwelveVoltVoltage != nil,
		s.ChargeLimitPct != nil,
		s.ChargePowerKw != nil,
		s.ChargeSessionKwh != nil,
		s.MinutesToChargeEnd != nil,
		s.ChargePortClosed != nil,
		s.CabinTempC != nil,
		s.OutsideTempC != nil,
		s.ClimateOn != nil,
		s.DefrostOn != nil,
		s.PetModeOn != nil,
		s.DoorsLocked != nil,
		s.FrunkClosed != nil,
		s.TrunkClosed != nil,
		s.WindowsClosed != nil,
		s.GearGuardLocked != nil,
		s.AlarmSounding != nil,
		s.TirePressureFL != nil,
		s.TirePressureFR != nil,
		s.TirePressureRL != nil,
		s.TirePressureRR != nil,
		s.FirmwareVersion != nil,
		s.FirmwareAvailable != nil,
		s.ChargerType != nil,
	}
}

// IsAwake reports whether the vehicle is doing anything that merits the
// short poll interval: powered up, in gear, or actively charging.
func (s *VehicleState) IsAwake() bool {
	switch s.PowerState {
	case PowerReady, PowerGo, PowerRemoteUse, PowerCharging:
		return true
	}
	if s.GearState != GearUnknown && s.GearState != GearPark {
		return true
	}
	return s.ChargerState == ChargerCharging
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
