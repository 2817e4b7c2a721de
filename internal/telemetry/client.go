package telemetry

import (
	"context"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// RemoteVehicle is the remote API's view of one vehicle, returned from
// account-level discovery.
type RemoteVehicle struct {
	RemoteID            string
	Name                string
	ModelYear           int
	BatteryPack         string
	OriginalCapacityKwh float64
}

// Client is the remote telematics capability. Implementations own the
// wire protocol; everything above this interface is protocol-agnostic.
type Client interface {
	// ListVehicles enumerates the vehicles visible to the account.
	ListVehicles(ctx context.Context, account *domain.Account) ([]RemoteVehicle, error)

	// FetchState pulls the current sparse state of one vehicle. The
	// returned partial flag is true when the payload carries only the
	// fields that changed since the last report, false when it is a
	// complete document.
	FetchState(ctx context.Context, account *domain.Account, remoteVehicleID string) (state *domain.VehicleState, partial bool, err error)

	// RefreshAuth attempts to renew the account's credentials, returning
	// whether the refresh succeeded. Callers invoke this at most once per
	// affected poll cycle.
	RefreshAuth(ctx context.Context, account *domain.Account) (bool, error)
}
