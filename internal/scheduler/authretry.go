package scheduler

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
)

// The refresh-and-retry guarantee — exactly one credential refresh per
// poll cycle, never two — is held by an explicit state machine instead
// of a boolean so the transitions themselves are testable.
const (
	refreshNotAttempted = "not_attempted"
	refreshInFlight     = "refreshing"
	refreshSucceeded    = "refreshed"
	refreshFailed       = "failed"

	eventBegin   = "begin"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

type authRetry struct {
	client telemetry.Client
	m      *fsm.FSM
}

func newAuthRetry(client telemetry.Client) *authRetry {
	return &authRetry{
		client: client,
		m: fsm.NewFSM(
			refreshNotAttempted,
			fsm.Events{
				{Name: eventBegin, Src: []string{refreshNotAttempted}, Dst: refreshInFlight},
				{Name: eventSucceed, Src: []string{refreshInFlight}, Dst: refreshSucceeded},
				{Name: eventFail, Src: []string{refreshInFlight}, Dst: refreshFailed},
			},
			fsm.Callbacks{},
		),
	}
}

// Attempt performs the cycle's single allowed credential refresh and
// reports whether the caller may retry its remote call. Once the
// machine has left not_attempted there is no path back, so a second
// Attempt in the same cycle always returns false.
func (r *authRetry) Attempt(ctx context.Context, account *domain.Account) bool {
	if err := r.m.Event(ctx, eventBegin); err != nil {
		return false
	}

	ok, err := r.client.RefreshAuth(ctx, account)
	if err != nil || !ok {
		_ = r.m.Event(ctx, eventFail)
		metrics.AuthRefreshes.WithLabelValues("failed").Inc()
		return false
	}

	_ = r.m.Event(ctx, eventSucceed)
	metrics.AuthRefreshes.WithLabelValues("ok").Inc()
	return true
}

func (r *authRetry) Failed() bool {
	return r.m.Current() == refreshFailed
}
