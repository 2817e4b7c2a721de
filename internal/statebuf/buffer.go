package statebuf

import (
	"math"
	"sync"
	"time"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

const (
	// DefaultHeartbeat caps how stale a persisted record may get even
	// when nothing significant changes.
	DefaultHeartbeat = time.Hour

	// DefaultBatteryDeltaPct is the battery-level change (percentage
	// points) that counts as significant. The boundary is inclusive.
	DefaultBatteryDeltaPct = 0.5

	// DefaultMovementMeters is the minimum great-circle movement that
	// counts as significant.
	DefaultMovementMeters = 50.0
)

// Buffer turns a stream of partial and duplicate per-vehicle updates
// into one canonical state plus a persist/skip decision. Operations are
// pure and in-memory; persistence failures are the caller's concern.
// Access is serialized per vehicle id and fully concurrent across
// vehicles.
type Buffer struct {
	mu      sync.Mutex
	entries map[string]*entry

	heartbeat       time.Duration
	batteryDeltaPct float64
	movementMeters  float64
}

type entry struct {
	mu        sync.Mutex
	current   *domain.VehicleState
	persisted *domain.VehicleState
}

type Option func(*Buffer)

func WithHeartbeat(d time.Duration) Option {
	return func(b *Buffer) { b.heartbeat = d }
}

func WithBatteryDelta(pct float64) Option {
	return func(b *Buffer) { b.batteryDeltaPct = pct }
}

func WithMovementThreshold(meters float64) Option {
	return func(b *Buffer) { b.movementMeters = meters }
}

func New(opts ...Option) *Buffer {
	b := &Buffer{
		entries:         make(map[string]*entry),
		heartbeat:       DefaultHeartbeat,
		batteryDeltaPct: DefaultBatteryDeltaPct,
		movementMeters:  DefaultMovementMeters,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Buffer) entryFor(vehicleID string) *entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[vehicleID]
	if !ok {
		e = &entry{}
		b.entries[vehicleID] = e
	}
	return e
}

// UpdateCurrent folds an incoming update into the buffered state and
// returns the merge result. For a partial update every unset field on
// incoming is filled from the previously buffered state, so a field
// once known is never regressed to unknown by an update that simply
// omits it. The buffered state is always replaced by the result and the
// timestamp always advances to the incoming update's timestamp.
func (b *Buffer) UpdateCurrent(vehicleID string, incoming *domain.VehicleState, isPartial bool) *domain.VehicleState {
	e := b.entryFor(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := incoming.Clone()
	if isPartial && e.current != nil {
		fillUnset(merged, e.current)
	}
	merged.Timestamp = incoming.Timestamp

	e.current = merged
	return merged.Clone()
}

// Current returns the buffered state for a vehicle, or nil when none
// has been seen yet.
func (b *Buffer) Current(vehicleID string) *domain.VehicleState {
	e := b.entryFor(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// ShouldPersist decides whether candidate differs enough from the last
// persisted state to justify a new durable record. True when no prior
// persisted state exists, when more than the heartbeat interval has
// elapsed since the last persisted timestamp, or when any member of the
// significance set changed. A value appearing or disappearing always
// counts as significant.
func (b *Buffer) ShouldPersist(vehicleID string, candidate *domain.VehicleState) bool {
	e := b.entryFor(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.persisted
	if prev == nil {
		return true
	}
	if candidate.Timestamp.Sub(prev.Timestamp) > b.heartbeat {
		return true
	}
	return b.significantChange(prev, candidate)
}

// MarkPersisted records state as the new comparison reference for the
// next ShouldPersist call.
func (b *Buffer) MarkPersisted(vehicleID string, state *domain.VehicleState) {
	e := b.entryFor(vehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persisted = state.Clone()
}

// Forget drops all buffered state for a vehicle.
func (b *Buffer) Forget(vehicleID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, vehicleID)
}

func (b *Buffer) significantChange(prev, next *domain.VehicleState) bool {
	// Presence flips anywhere in the state are always significant.
	pv, nv := prev.PresenceVector(), next.PresenceVector()
	for i := range pv {
		if pv[i] != nv[i] {
			return true
		}
	}

	if prev.PowerState != next.PowerState ||
		prev.GearState != next.GearState ||
		prev.ChargerState != next.ChargerState {
		return true
	}

	if prev.BatterySoc != nil && next.BatterySoc != nil {
		if math.Abs(*next.BatterySoc-*prev.BatterySoc) >= b.batteryDeltaPct {
			return true
		}
	}

	if prev.Latitude != nil && prev.Longitude != nil &&
		next.Latitude != nil && next.Longitude != nil {
		d := Haversine(*prev.Latitude, *prev.Longitude, *next.Latitude, *next.Longitude)
		if d >= b.movementMeters {
			return true
		}
	}

	return false
}

// fillUnset copies every field that incoming left unset from prev.
// Enumerated fields use the unknown sentinel as their null marker.
func fillUnset(incoming, prev *domain.VehicleState) {
	if incoming.Latitude == nil {
		incoming.Latitude = cloneF(prev.Latitude)
	}
	if incoming.Longitude == nil {
		incoming.Longitude = cloneF(prev.Longitude)
	}
	if incoming.Heading == nil {
		incoming.Heading = cloneI(prev.Heading)
	}
	if incoming.SpeedMph == nil {
		incoming.SpeedMph = cloneF(prev.SpeedMph)
	}
	if incoming.PowerState == domain.PowerUnknown {
		incoming.PowerState = prev.PowerState
	}
	if incoming.GearState == domain.GearUnknown {
		incoming.GearState = prev.GearState
	}
	if incoming.OdometerMi == nil {
		incoming.OdometerMi = cloneF(prev.OdometerMi)
	}
	if incoming.RangeMi == nil {
		incoming.RangeMi = cloneF(prev.RangeMi)
	}
	if incoming.BatterySoc == nil {
		incoming.BatterySoc = cloneF(prev.BatterySoc)
	}
	if incoming.BatteryCapacityKwh == nil {
		incoming.BatteryCapacityKwh = cloneF(prev.BatteryCapacityKwh)
	}
	if incoming.BatteryTempC == nil {
		incoming.BatteryTempC = cloneF(prev.BatteryTempC)
	}
	if incoming.TwelveVoltVoltage == nil {
		incoming.TwelveVoltVoltage = cloneF(prev.TwelveVoltVoltage)
	}
	if incoming.ChargerState == domain.ChargerUnknown {
		incoming.ChargerState = prev.ChargerState
	}
	if incoming.ChargeLimitPct == nil {
		incoming.ChargeLimitPct = cloneF(prev.ChargeLimitPct)
	}
	if incoming.ChargePowerKw == nil {
		incoming.ChargePowerKw = cloneF(prev.ChargePowerKw)
	}
	if incoming.ChargeSessionKwh == nil {
		incoming.ChargeSessionKwh = cloneF(prev.ChargeSessionKwh)
	}
	if incoming.MinutesToChargeEnd == nil {
		incoming.MinutesToChargeEnd = cloneI(prev.MinutesToChargeEnd)
	}
	if incoming.ChargePortClosed == nil {
		incoming.ChargePortClosed = cloneB(prev.ChargePortClosed)
	}
	if incoming.CabinTempC == nil {
		incoming.CabinTempC = cloneF(prev.CabinTempC)
	}
	if incoming.OutsideTempC == nil {
		incoming.OutsideTempC = cloneF(prev.OutsideTempC)
	}
	if incoming.ClimateOn == nil {
		incoming.ClimateOn = cloneB(prev.ClimateOn)
	}
	if incoming.DefrostOn == nil {
		incoming.DefrostOn = cloneB(prev.DefrostOn)
	}
	if incoming.PetModeOn == nil {
		incoming.PetModeOn = cloneB(prev.PetModeOn)
	}
	if incoming.DoorsLocked == nil {
		incoming.DoorsLocked = cloneB(prev.DoorsLocked)
	}
	if incoming.FrunkClosed == nil {
		incoming.FrunkClosed = cloneB(prev.FrunkClosed)
	}
	if incoming.TrunkClosed == nil {
		incoming.TrunkClosed = cloneB(prev.TrunkClosed)
	}
	if incoming.WindowsClosed == nil {
		incoming.WindowsClosed = cloneB(prev.WindowsClosed)
	}
	if incoming.GearGuardLocked == nil {
		incoming.GearGuardLocked = cloneB(prev.GearGuardLocked)
	}
	if incoming.AlarmSounding == nil {
		incoming.AlarmSounding = cloneB(prev.AlarmSounding)
	}
	if incoming.TirePressureFL == nil {
		incoming.TirePressureFL = cloneF(prev.TirePressureFL)
	}
	if incoming.TirePressureFR == nil {
		incoming.TirePressureFR = cloneF(prev.TirePressureFR)
	}
	if incoming.TirePressureRL == nil {
		incoming.TirePressureRL = cloneF(prev.TirePressureRL)
	}
	if incoming.TirePressureRR == nil {
		incoming.TirePressureRR = cloneF(prev.TirePressureRR)
	}
	if incoming.FirmwareVersion == nil {
		incoming.FirmwareVersion = cloneS(prev.FirmwareVersion)
	}
	if incoming.FirmwareAvailable == nil {
		incoming.FirmwareAvailable = cloneS(prev.FirmwareAvailable)
	}
	if incoming.ChargerType == nil {
		incoming.ChargerType = cloneS(prev.ChargerType)
	}
}

func cloneF(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneI(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneB(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneS(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
