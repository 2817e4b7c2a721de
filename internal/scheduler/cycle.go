package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
	"github.com/rawsignal/RivianMate-sub001/internal/metrics"
	"github.com/rawsignal/RivianMate-sub001/internal/pipeline"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
	"github.com/rawsignal/RivianMate-sub001/internal/telemetry"
)

// runCycle polls every active vehicle under one account. One bad
// vehicle never aborts the cycle; a rate limit abandons it; a vanished
// account uninstalls its schedule.
func (s *Scheduler) runCycle(ctx context.Context, t *task) {
	log := s.log.WithField("account", t.accountID)

	account, err := s.store.GetAccount(ctx, t.accountID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("account no longer exists, removing schedule")
		s.RemoveAccount(t.accountID)
		metrics.PollCycles.WithLabelValues("account_gone").Inc()
		return
	}
	if err != nil {
		log.WithError(err).Error("load account failed")
		metrics.PollCycles.WithLabelValues("error").Inc()
		return
	}
	if account.Disabled {
		log.Info("account disabled, removing schedule")
		s.RemoveAccount(t.accountID)
		metrics.PollCycles.WithLabelValues("account_gone").Inc()
		return
	}

	retry := newAuthRetry(s.client)

	vehicles, err := s.store.ListVehicles(ctx, account.ID)
	if err != nil {
		log.WithError(err).Error("list vehicles failed")
		metrics.PollCycles.WithLabelValues("error").Inc()
		return
	}
	if len(vehicles) == 0 {
		vehicles, err = s.discoverVehicles(ctx, account, retry)
		if err != nil {
			switch {
			case telemetry.IsRateLimited(err):
				s.Backoff(account.ID, telemetry.RetryAfter(err, s.defaultBackoff))
				metrics.PollCycles.WithLabelValues("rate_limited").Inc()
			case errors.Is(err, telemetry.ErrAccountNotFound):
				log.Info("account gone upstream, removing schedule")
				s.RemoveAccount(account.ID)
				metrics.PollCycles.WithLabelValues("account_gone").Inc()
			default:
				log.WithError(err).Error("vehicle discovery failed")
				if dbErr := s.store.SetAccountError(ctx, account.ID, err.Error()); dbErr != nil {
					log.WithError(dbErr).Error("record account error failed")
				}
				metrics.PollCycles.WithLabelValues("error").Inc()
			}
			return
		}
	}

	anyAwake := false
	for _, v := range vehicles {
		if !v.Active {
			continue
		}
		// Cancellation is honored between vehicles only; an in-flight
		// remote call finishes on its own.
		if ctx.Err() != nil {
			return
		}

		state, partial, err := s.fetchState(ctx, account, v, retry)
		if err != nil {
			if telemetry.IsRateLimited(err) {
				s.Backoff(account.ID, telemetry.RetryAfter(err, s.defaultBackoff))
				metrics.PollCycles.WithLabelValues("rate_limited").Inc()
				return
			}
			class := "transient"
			if telemetry.LooksLikeExpiredAuth(err) {
				class = "auth"
			}
			metrics.VehicleFetchErrors.WithLabelValues(class).Inc()
			log.WithField("vehicle", v.ID).WithError(err).Warn("vehicle fetch failed")
			if dbErr := s.store.SetVehicleError(ctx, v.ID, err.Error()); dbErr != nil {
				log.WithError(dbErr).Error("record vehicle error failed")
			}
			continue
		}

		merged := s.buffer.UpdateCurrent(v.ID, state, partial)
		if merged.IsAwake() {
			anyAwake = true
		}

		if s.buffer.ShouldPersist(v.ID, merged) {
			s.buffer.MarkPersisted(v.ID, merged)
			s.dispatcher.Dispatch(&pipeline.StateUpdate{
				AccountID: account.ID,
				Vehicle:   v,
				State:     merged,
			})
			metrics.StatesPersisted.Inc()
		} else {
			metrics.UpdatesSkipped.Inc()
		}
	}

	s.adjustCadence(t, anyAwake)

	if retry.Failed() {
		// The account stays registered; the operator sees the error and
		// the next cycle tries again from scratch.
		if err := s.store.SetAccountError(ctx, account.ID, "authentication expired and refresh failed"); err != nil {
			log.WithError(err).Error("record account error failed")
		}
		metrics.PollCycles.WithLabelValues("error").Inc()
		return
	}

	if err := s.store.SetAccountSynced(ctx, account.ID, time.Now().UTC()); err != nil {
		log.WithError(err).Error("record sync time failed")
	}
	metrics.PollCycles.WithLabelValues("ok").Inc()
}

// fetchState pulls one vehicle's state, retrying exactly once through
// the refresh machine when the failure smells like an expired token.
func (s *Scheduler) fetchState(ctx context.Context, account *domain.Account, v *domain.Vehicle, retry *authRetry) (*domain.VehicleState, bool, error) {
	state, partial, err := s.client.FetchState(ctx, account, v.RemoteVehicleID)
	if err == nil || !telemetry.LooksLikeExpiredAuth(err) {
		return state, partial, err
	}

	if !retry.Attempt(ctx, account) {
		return nil, false, err
	}

	// The refresh rotated tokens; persist them before retrying so a
	// crash does not strand the old credentials.
	if dbErr := s.store.UpsertAccount(ctx, account); dbErr != nil {
		s.log.WithField("account", account.ID).WithError(dbErr).
			Error("persist refreshed tokens failed")
	}

	return s.client.FetchState(ctx, account, v.RemoteVehicleID)
}

// discoverVehicles runs first-poll discovery: list the account's remote
// vehicles and create local identities for them.
func (s *Scheduler) discoverVehicles(ctx context.Context, account *domain.Account, retry *authRetry) ([]*domain.Vehicle, error) {
	remotes, err := s.client.ListVehicles(ctx, account)
	if err != nil && telemetry.LooksLikeExpiredAuth(err) && retry.Attempt(ctx, account) {
		remotes, err = s.client.ListVehicles(ctx, account)
	}
	if err != nil {
		return nil, err
	}

	vehicles := make([]*domain.Vehicle, 0, len(remotes))
	for _, r := range remotes {
		v := &domain.Vehicle{
			ID:                  uuid.NewString(),
			AccountID:           account.ID,
			RemoteVehicleID:     r.RemoteID,
			Name:                r.Name,
			ModelYear:           r.ModelYear,
			BatteryPack:         r.BatteryPack,
			OriginalCapacityKwh: r.OriginalCapacityKwh,
			Active:              true,
			CreatedAt:           time.Now().UTC(),
		}
		if err := s.store.UpsertVehicle(ctx, v); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	s.log.WithField("account", account.ID).
		WithField("vehicles", len(vehicles)).Info("discovered vehicles")
	return vehicles, nil
}
