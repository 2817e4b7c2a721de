package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivianmate_poll_cycles_total",
			Help: "Completed account poll cycles by outcome.",
		},
		[]string{"outcome"}, // ok, rate_limited, account_gone, error
	)

	VehicleFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivianmate_vehicle_fetch_errors_total",
			Help: "Per-vehicle fetch failures by class.",
		},
		[]string{"class"}, // auth, transient
	)

	AuthRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivianmate_auth_refreshes_total",
			Help: "Credential refresh attempts by result.",
		},
		[]string{"result"}, // ok, failed
	)

	StatesPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rivianmate_states_persisted_total",
			Help: "Canonical state upserts dispatched to the pipeline.",
		},
	)

	UpdatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rivianmate_updates_skipped_total",
			Help: "Merged updates below the significance threshold.",
		},
	)

	SnapshotsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rivianmate_battery_snapshots_total",
			Help: "Battery capacity snapshots appended.",
		},
	)

	ChannelDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rivianmate_channel_drops_total",
			Help: "Pipeline messages dropped on a full channel.",
		},
		[]string{"channel"}, // db, state, health
	)

	ActiveAccounts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rivianmate_active_accounts",
			Help: "Accounts currently registered with the scheduler.",
		},
	)

	Backoffs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rivianmate_backoffs_total",
			Help: "Rate-limit backoffs applied to account schedules.",
		},
	)

	PushUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rivianmate_push_updates_total",
			Help: "Partial updates received over the push channel.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		PollCycles,
		VehicleFetchErrors,
		AuthRefreshes,
		StatesPersisted,
		UpdatesSkipped,
		SnapshotsRecorded,
		ChannelDrops,
		ActiveAccounts,
		Backoffs,
		PushUpdates,
	)
}
