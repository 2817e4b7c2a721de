package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/pipeline"
	"github.com/rawsignal/RivianMate-sub001/internal/statebuf"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
)

type fakeClient struct {
	listVehicles func(ctx context.Context, account *domain.Account) ([]telemetry.RemoteVehicle, error)
	fetchState   func(ctx context.Context, account *domain.Account, remoteID string) (*domain.VehicleState, bool, error)
	refreshAuth  func(ctx context.Context, account *domain.Account) (bool, error)

	refreshCalls int
}

func (c *fakeClient) ListVehicles(ctx context.Context, account *domain.Account) ([]telemetry.RemoteVehicle, error) {
	if c.listVehicles == nil {
		return nil, nil
	}
	return c.listVehicles(ctx, account)
}

func (c *fakeClient) FetchState(ctx context.Context, account *domain.Account, remoteID string) (*domain.VehicleState, bool, error) {
	return c.fetchState(ctx, account, remoteID)
}

func (c *fakeClient) RefreshAuth(ctx context.Context, account *domain.Account) (bool, error) {
	c.refreshCalls++
	if c.refreshAuth == nil {
		return true, nil
	}
	return c.refreshAuth(ctx, account)
}

type fakeStore struct {
	accounts map[string]*domain.Account
	vehicles map[string][]*domain.Vehicle

	accountErrors  []string
	vehicleErrors  map[string]string
	syncedAccounts []string
	upsertedVehs   []*domain.Vehicle
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      make(map[string]*domain.Account),
		vehicles:      make(map[string][]*domain.Vehicle),
		vehicleErrors: make(map[string]string),
	}
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) UpsertAccount(_ context.Context, a *domain.Account) error {
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) SetAccountError(_ context.Context, id, message string) error {
	f.accountErrors = append(f.accountErrors, message)
	return nil
}

func (f *fakeStore) SetAccountSynced(_ context.Context, id string, _ time.Time) error {
	f.syncedAccounts = append(f.syncedAccounts, id)
	return nil
}

func (f *fakeStore) ListVehicles(_ context.Context, accountID string) ([]*domain.Vehicle, error) {
	return f.vehicles[accountID], nil
}

func (f *fakeStore) UpsertVehicle(_ context.Context, v *domain.Vehicle) error {
	f.upsertedVehs = append(f.upsertedVehs, v)
	f.vehicles[v.AccountID] = append(f.vehicles[v.AccountID], v)
	return nil
}

func (f *fakeStore) SetVehicleError(_ context.Context, id, message string) error {
	f.vehicleErrors[id] = message
	return nil
}

func newTestScheduler(t *testing.T, client telemetry.Client, st Store) (*Scheduler, *pipeline.Dispatcher) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	dispatcher := pipeline.NewDispatcher(8, 8, 8)
	s := New(client, st, statebuf.New(), dispatcher, Options{
		AwakeInterval:  time.Second,
		AsleepInterval: time.Minute,
		DefaultBackoff: time.Minute,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Start(ctx)
	return s, dispatcher
}

func (s *Scheduler) taskFor(accountID string) *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[accountID]
}

func seedAccount(st *fakeStore, id string) *domain.Account {
	a := &domain.Account{ID: id, AccessToken: "tok", RefreshToken: "ref"}
	st.accounts[id] = a
	return a
}

func seedVehicle(st *fakeStore, accountID, id, remoteID string) *domain.Vehicle {
	v := &domain.Vehicle{
		ID:              id,
		AccountID:       accountID,
		RemoteVehicleID: remoteID,
		Active:          true,
	}
	st.vehicles[accountID] = append(st.vehicles[accountID], v)
	return v
}

func awakeState(remoteID string) *domain.VehicleState {
	soc := 80.0
	return &domain.VehicleState{
		Timestamp:  time.Now().UTC(),
		PowerState: domain.PowerReady,
		GearState:  domain.GearPark,
		BatterySoc: &soc,
	}
}

func asleepState() *domain.VehicleState {
	soc := 80.0
	return &domain.VehicleState{
		Timestamp:    time.Now().UTC(),
		PowerState:   domain.PowerSleep,
		GearState:    domain.GearPark,
		ChargerState: domain.ChargerDisconnected,
		BatterySoc:   &soc,
	}
}

func TestCycleRemovesVanishedAccount(t *testing.T) {
	st := newFakeStore()
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, st)

	s.RegisterAccount("gone")
	require.True(t, s.Registered("gone"))

	s.runCycle(context.Background(), s.taskFor("gone"))

	require.False(t, s.Registered("gone"))
	require.Empty(t, st.accountErrors)
}

func TestCycleRemovesDisabledAccount(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc").Disabled = true
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, st)

	s.RegisterAccount("acc")
	s.runCycle(context.Background(), s.taskFor("acc"))

	require.False(t, s.Registered("acc"))
}

func TestCycleRateLimitBacksOffWithoutUnregistering(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1")

	client := &fakeClient{
		fetchState: func(context.Context, *domain.Account, string) (*domain.VehicleState, bool, error) {
			return nil, false, &telemetry.RateLimitError{RetryAfter: 30 * time.Minute}
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.True(t, s.Registered("acc"), "a throttled account keeps its schedule")
	require.Greater(t, s.Interval("acc"), time.Minute, "backoff overrides the normal cadence")
	require.Empty(t, st.syncedAccounts, "an abandoned cycle is not a successful sync")
	require.Empty(t, st.vehicleErrors, "rate limiting is not a vehicle fault")
}

func TestCycleRefreshesAuthExactlyOnce(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1")
	seedVehicle(st, "acc", "veh-2", "R2")
	seedVehicle(st, "acc", "veh-3", "R3")

	client := &fakeClient{
		fetchState: func(context.Context, *domain.Account, string) (*domain.VehicleState, bool, error) {
			return nil, false, &telemetry.APIError{StatusCode: 401, Message: "unauthenticated"}
		},
		refreshAuth: func(context.Context, *domain.Account) (bool, error) {
			return false, errors.New("refresh rejected")
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.Equal(t, 1, client.refreshCalls, "one refresh per cycle no matter how many vehicles fail")
	require.True(t, s.Registered("acc"), "a failed refresh leaves the schedule installed")
	require.NotEmpty(t, st.accountErrors)
	require.Contains(t, st.accountErrors[len(st.accountErrors)-1], "refresh failed")
	require.Empty(t, st.syncedAccounts)
}

func TestCycleAuthRefreshRecoversFetch(t *testing.T) {
	st := newFakeStore()
	account := seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1")

	refreshed := false
	client := &fakeClient{
		fetchState: func(_ context.Context, _ *domain.Account, remoteID string) (*domain.VehicleState, bool, error) {
			if !refreshed {
				return nil, false, &telemetry.APIError{StatusCode: 401, Message: "unauthenticated"}
			}
			return asleepState(), false, nil
		},
		refreshAuth: func(_ context.Context, a *domain.Account) (bool, error) {
			refreshed = true
			a.AccessToken = "tok2"
			return true, nil
		},
	}
	s, dispatcher := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.Equal(t, 1, client.refreshCalls)
	require.Equal(t, "tok2", account.AccessToken, "rotated tokens are persisted")
	require.Equal(t, []string{"acc"}, st.syncedAccounts)
	require.Len(t, dispatcher.DBChan, 1, "the recovered fetch still flows downstream")
}

func TestCycleIsolatesVehicleFailures(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-bad", "BAD")
	seedVehicle(st, "acc", "veh-good", "GOOD")

	client := &fakeClient{
		fetchState: func(_ context.Context, _ *domain.Account, remoteID string) (*domain.VehicleState, bool, error) {
			if remoteID == "BAD" {
				return nil, false, &telemetry.APIError{StatusCode: 503, Message: "upstream timeout"}
			}
			return asleepState(), false, nil
		},
	}
	s, dispatcher := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.Contains(t, st.vehicleErrors, "veh-bad")
	require.NotContains(t, st.vehicleErrors, "veh-good")
	require.Len(t, dispatcher.DBChan, 1, "the healthy vehicle still persists")
	require.Equal(t, []string{"acc"}, st.syncedAccounts, "one bad vehicle does not fail the cycle")
}

func TestCycleSkipsInactiveVehicles(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1").Active = false

	fetches := 0
	client := &fakeClient{
		fetchState: func(context.Context, *domain.Account, string) (*domain.VehicleState, bool, error) {
			fetches++
			return asleepState(), false, nil
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.Zero(t, fetches)
	require.Equal(t, []string{"acc"}, st.syncedAccounts)
}

func TestCycleAwakeVehicleShortensCadence(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1")

	client := &fakeClient{
		fetchState: func(_ context.Context, _ *domain.Account, remoteID string) (*domain.VehicleState, bool, error) {
			return awakeState(remoteID), false, nil
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	require.Equal(t, time.Minute, s.Interval("acc"))
	s.runCycle(context.Background(), s.taskFor("acc"))
	require.Equal(t, time.Second, s.Interval("acc"))
}

func TestCycleDiscoversVehiclesOnFirstPoll(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")

	client := &fakeClient{
		listVehicles: func(context.Context, *domain.Account) ([]telemetry.RemoteVehicle, error) {
			return []telemetry.RemoteVehicle{
				{RemoteID: "R1", Name: "R1T", ModelYear: 2023, BatteryPack: "large", OriginalCapacityKwh: 135},
			}, nil
		},
		fetchState: func(context.Context, *domain.Account, string) (*domain.VehicleState, bool, error) {
			return asleepState(), false, nil
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(context.Background(), s.taskFor("acc"))

	require.Len(t, st.upsertedVehs, 1)
	v := st.upsertedVehs[0]
	require.NotEmpty(t, v.ID)
	require.Equal(t, "acc", v.AccountID)
	require.Equal(t, "R1", v.RemoteVehicleID)
	require.InDelta(t, 135, v.OriginalCapacityKwh, 1e-9)
	require.True(t, v.Active)
	require.Equal(t, []string{"acc"}, st.syncedAccounts)
}

func TestCycleStopsBetweenVehiclesOnCancel(t *testing.T) {
	st := newFakeStore()
	seedAccount(st, "acc")
	seedVehicle(st, "acc", "veh-1", "R1")
	seedVehicle(st, "acc", "veh-2", "R2")

	ctx, cancel := context.WithCancel(context.Background())
	fetches := 0
	client := &fakeClient{
		fetchState: func(context.Context, *domain.Account, string) (*domain.VehicleState, bool, error) {
			fetches++
			cancel()
			return asleepState(), false, nil
		},
	}
	s, _ := newTestScheduler(t, client, st)
	s.RegisterAccount("acc")

	s.runCycle(ctx, s.taskFor("acc"))

	require.Equal(t, 1, fetches, "cancellation is honored before the next vehicle")
	require.Empty(t, st.syncedAccounts)
}

func TestRegisterAccountIsIdempotent(t *testing.T) {
	st := newFakeStore()
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, st)

	s.RegisterAccount("acc")
	first := s.taskFor("acc")
	s.RegisterAccount("acc")
	require.Same(t, first, s.taskFor("acc"))
}

func TestTriggerImmediatePollUnknownAccount(t *testing.T) {
	st := newFakeStore()
	s, _ := newTestScheduler(t, &fakeClient{}, st)
	require.False(t, s.TriggerImmediatePoll("nope"))

	s.RegisterAccount("acc")
	require.True(t, s.TriggerImmediatePoll("acc"))
}
