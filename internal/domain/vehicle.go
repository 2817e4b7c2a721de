package domain

import "time"

// Vehicle binds a stable local identity to a remote vehicle id. Static
// specs are inferred once on discovery and cached here. Vehicles are
// never deleted, only deactivated.
type Vehicle struct {
	ID              string
	AccountID       string
	RemoteVehicleID string

	Name                string
	ModelYear           int
	BatteryPack         string
	OriginalCapacityKwh float64

	Active    bool
	LastError string

	CreatedAt time.Time
}
