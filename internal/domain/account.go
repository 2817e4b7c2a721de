package domain

import "time"

// Account holds one set of remote credentials and the scheduling
// metadata the poller mutates every cycle.
type Account struct {
	ID              string
	RemoteAccountID string
	AccessToken     string
	RefreshToken    string

	PollInterval time.Duration
	LastError    string
	LastSyncedAt *time.Time
	Disabled     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
